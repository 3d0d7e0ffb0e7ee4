package highlight

import (
	"regexp"
	"testing"

	"github.com/sheenazien8/mysql2mongo/ui/theme"
)

var escapes = regexp.MustCompile("\x1b\\[[0-9;]*m")

func TestHighlightKeepsText(t *testing.T) {
	theme.SetTheme(theme.DefaultTheme())

	tests := []struct {
		name string
		fn   func(string) string
		in   string
	}{
		{"create table", SQL, "CREATE TABLE `author` (\n  `id` int NOT NULL,\n  PRIMARY KEY (`id`)\n) ENGINE=InnoDB"},
		{"trigger", SQL, "CREATE TRIGGER `t` BEFORE INSERT ON `book` FOR EACH ROW SET NEW.rating = 'G'"},
		{"validator", JSON, "{\n  \"$jsonSchema\": {\n    \"bsonType\": \"object\"\n  }\n}"},
		{"empty", SQL, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := escapes.ReplaceAllString(tt.fn(tt.in), "")
			if got != tt.in {
				t.Errorf("text changed:\n got %q\nwant %q", got, tt.in)
			}
		})
	}
}
