package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/region23/sessionboard/internal/storage/models"
)

// templateFile: формат YAML-файла с расписанием недели:
//
//	weekday: thursday
//	windows:
//	  - name: Session 1
//	    start: "09:35"
//	    end: "10:10"
type templateFile struct {
	Weekday string                 `yaml:"weekday"`
	Windows []models.SessionWindow `yaml:"windows"`
}

// LoadTemplate читает шаблон недели из YAML-файла
func LoadTemplate(path string) (models.SessionTemplate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.SessionTemplate{}, fmt.Errorf("failed to read sessions file: %w", err)
	}
	return ParseTemplate(data)
}

// ParseTemplate разбирает шаблон недели из YAML
func ParseTemplate(data []byte) (models.SessionTemplate, error) {
	var file templateFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return models.SessionTemplate{}, fmt.Errorf("failed to parse sessions file: %w", err)
	}

	tmpl := models.SessionTemplate{
		Weekday: time.Thursday,
		Windows: file.Windows,
	}
	if file.Weekday != "" {
		weekday, err := ParseWeekday(file.Weekday)
		if err != nil {
			return models.SessionTemplate{}, err
		}
		tmpl.Weekday = weekday
	}

	if err := ValidateTemplate(tmpl); err != nil {
		return models.SessionTemplate{}, err
	}
	return tmpl, nil
}

// ValidateTemplate проверяет, что окна непусты, отсортированы и не пересекаются
func ValidateTemplate(tmpl models.SessionTemplate) error {
	if len(tmpl.Windows) == 0 {
		return fmt.Errorf("sessions template has no windows")
	}
	for i, w := range tmpl.Windows {
		if w.Name == "" {
			return fmt.Errorf("window %d has no name", i+1)
		}
		if w.Minutes() <= 0 {
			return fmt.Errorf("window %q must end after it starts", w.Name)
		}
		if i > 0 && w.Start.Minutes() < tmpl.Windows[i-1].End.Minutes() {
			return fmt.Errorf("window %q overlaps %q", w.Name, tmpl.Windows[i-1].Name)
		}
	}
	return nil
}

// ParseWeekday разбирает день недели по английскому имени или его первым трем буквам
func ParseWeekday(s string) (time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) >= 3 {
		for d := time.Sunday; d <= time.Saturday; d++ {
			name := strings.ToLower(d.String())
			if s == name || s == name[:3] {
				return d, nil
			}
		}
	}
	return time.Sunday, fmt.Errorf("unknown weekday %q", s)
}
