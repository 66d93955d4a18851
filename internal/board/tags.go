package board

import "strings"

// ParseTags разбирает введённую пользователем строку тегов (через запятую)
// в канонический список: trim, нижний регистр, пустые отброшены, дубликаты
// схлопнуты с сохранением порядка первого вхождения.
func ParseTags(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	seen := make(map[string]struct{}, len(parts))
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		name := strings.ToLower(strings.TrimSpace(p))
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		tags = append(tags, name)
	}
	return tags
}

// NormalizeTag приводит одно имя тега к каноническому виду.
func NormalizeTag(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
