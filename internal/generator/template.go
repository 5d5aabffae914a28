package generator

import (
	"fmt"
	"net/url"
	"strings"
)

var memegenEscapes = strings.NewReplacer(
	"_", "__",
	"-", "--",
	" ", "_",
	"?", "~q",
	"&", "~a",
	"%", "~p",
	"#", "~h",
	"/", "~s",
	"\\", "~b",
	"<", "~l",
	">", "~g",
	`"`, "''",
	"\n", "~n",
)

// TemplateURL builds a memegen-style image URL: base/images/<id>/<line>/.../<line>.png.
// Empty captions are encoded as "_".
func TemplateURL(base, templateID string, lines []string) (string, error) {
	if strings.TrimSpace(base) == "" {
		return "", fmt.Errorf("template base url is empty")
	}
	if templateID == "" {
		return "", fmt.Errorf("template id is empty")
	}
	parts := []string{strings.TrimRight(base, "/"), "images", url.PathEscape(templateID)}
	if len(lines) == 0 {
		lines = []string{""}
	}
	for _, l := range lines {
		seg := memegenEscapes.Replace(l)
		if seg == "" {
			seg = "_"
		}
		parts = append(parts, url.PathEscape(seg))
	}
	return strings.Join(parts, "/") + ".png", nil
}
