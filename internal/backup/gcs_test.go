package backup

import "testing"

func TestGCSUploader_ObjectName(t *testing.T) {
	tests := []struct {
		prefix, name, want string
	}{
		{"", "backup_2025-01-15_10-00-00.db", "backup_2025-01-15_10-00-00.db"},
		{"mxmoney/backups", "b.db", "mxmoney/backups/b.db"},
		{"mxmoney/", "b.db", "mxmoney/b.db"},
	}
	for _, tt := range tests {
		u := &GCSUploader{prefix: tt.prefix}
		if got := u.ObjectName(tt.name); got != tt.want {
			t.Errorf("ObjectName(%q, %q) = %q, want %q", tt.prefix, tt.name, got, tt.want)
		}
	}
}
