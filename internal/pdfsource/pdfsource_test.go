package pdfsource

import "testing"

func TestParsePageRange(t *testing.T) {
	tests := []struct {
		input   string
		want    []int
		wantErr bool
	}{
		{"", nil, false},
		{"3", []int{3}, false},
		{"1,3,5", []int{1, 3, 5}, false},
		{"1-4", []int{1, 2, 3, 4}, false},
		{"1-2,5", []int{1, 2, 5}, false},
		{"5-2", nil, true},
		{"a", nil, true},
		{"1-2-3", nil, true},
	}
	for _, tt := range tests {
		got, err := parsePageRange(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parsePageRange(%q): expected error", tt.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("parsePageRange(%q): %v", tt.input, err)
			continue
		}
		if len(got) != len(tt.want) {
			t.Errorf("parsePageRange(%q) = %v, want %v", tt.input, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("parsePageRange(%q) = %v, want %v", tt.input, got, tt.want)
				break
			}
		}
	}
}

func TestParsePageFromFilename(t *testing.T) {
	tests := []struct {
		name    string
		want    int
		wantErr bool
	}{
		{"page_1_image_1.png", 1, false},
		{"page_12_image_3.jpg", 12, false},
		{"thumbnail.png", 0, true},
		{"page_x_image_1.png", 0, true},
	}
	for _, tt := range tests {
		got, err := parsePageFromFilename(tt.name)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parsePageFromFilename(%q): expected error", tt.name)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("parsePageFromFilename(%q) = %d, %v, want %d", tt.name, got, err, tt.want)
		}
	}
}

func TestExtractImagesMissingFile(t *testing.T) {
	if _, err := ExtractImages("/nonexistent/file.pdf", ""); err == nil {
		t.Fatal("expected error for missing PDF")
	}
}
