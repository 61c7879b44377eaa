// internal/service/template_service.go
package service

import (
	"strings"
)

// RenderTemplate replaces {key} placeholders with data[key]. Placeholders
// without a value are left as written.
func RenderTemplate(template string, data map[string]string) string {
	if !strings.Contains(template, "{") || len(data) == 0 {
		return template
	}
	pairs := make([]string, 0, len(data)*2)
	for k, v := range data {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}
