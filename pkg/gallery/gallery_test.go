package gallery

import "testing"

func TestTimestampDate(t *testing.T) {
	tests := []struct {
		name    string
		ts      string
		want    string
		wantErr bool
	}{
		{
			name: "midnight UTC",
			ts:   "1706918400.000000",
			want: "2024-02-03",
		},
		{
			name: "late evening still same UTC day",
			ts:   "1707004799.999999",
			want: "2024-02-03",
		},
		{
			name: "no fractional part",
			ts:   "1706918400",
			want: "2024-02-03",
		},
		{
			name:    "garbage",
			ts:      "not-a-timestamp",
			wantErr: true,
		},
		{
			name:    "empty",
			ts:      "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := TimestampDate(tt.ts)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("TimestampDate(%q) expected error, got %q", tt.ts, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("TimestampDate(%q) error = %v", tt.ts, err)
			}
			if got != tt.want {
				t.Errorf("TimestampDate(%q) = %q, want %q", tt.ts, got, tt.want)
			}
		})
	}
}

func TestImageRefFilename(t *testing.T) {
	img := ImageRef{
		FileID:    "F999",
		Name:      "art.png",
		MessageTS: "1706918400.000100",
	}
	got, err := img.Filename()
	if err != nil {
		t.Fatalf("Filename() error = %v", err)
	}
	if want := "2024-02-03-F999.png"; got != want {
		t.Errorf("Filename() = %q, want %q", got, want)
	}
}

func TestImageRefFilenameNoExtension(t *testing.T) {
	img := ImageRef{
		FileID:    "F123",
		Name:      "pasted image",
		MessageTS: "1706918400.000100",
	}
	got, err := img.Filename()
	if err != nil {
		t.Fatalf("Filename() error = %v", err)
	}
	if want := "2024-02-03-F123"; got != want {
		t.Errorf("Filename() = %q, want %q", got, want)
	}
}

func TestMessageAutomated(t *testing.T) {
	if (Message{}).Automated() {
		t.Error("message without bot_id should not be automated")
	}
	if !(Message{BotID: "B123"}).Automated() {
		t.Error("message with bot_id should be automated")
	}
}
