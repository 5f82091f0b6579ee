package extract

import "testing"

func TestParseBulletinToken(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    float64
		absent  bool
		wantErr bool
	}{
		{name: "plain integer", raw: "12345", want: 12345},
		{name: "thousands separators", raw: "1,234,567", want: 1234567},
		{name: "negative", raw: "-64", want: -64},
		{name: "detached negative sign", raw: "- 64", want: -64},
		{name: "detached positive sign", raw: "+ 310", want: 310},
		{name: "unchanged marker", raw: "UNCH", want: 0},
		{name: "unchanged lowercase", raw: "unch", want: 0},
		{name: "dash placeholder", raw: "----", absent: true},
		{name: "empty cell", raw: "", absent: true},
		{name: "whitespace only", raw: "   ", absent: true},
		{name: "garbage", raw: "N/A", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseBulletinToken(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseBulletinToken(%q) expected error, got %v", tt.raw, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseBulletinToken(%q) unexpected error: %v", tt.raw, err)
			}
			if tt.absent {
				if got != nil {
					t.Fatalf("ParseBulletinToken(%q) = %v, want absent", tt.raw, *got)
				}
				return
			}
			if got == nil {
				t.Fatalf("ParseBulletinToken(%q) = absent, want %v", tt.raw, tt.want)
			}
			if *got != tt.want {
				t.Errorf("ParseBulletinToken(%q) = %v, want %v", tt.raw, *got, tt.want)
			}
		})
	}
}
