package alerts

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/m1ndvortex/multi-tenant-sub006/internal/snapshot"
)

// Supported locales
const (
	LocaleEnglish = "en"
	LocalePersian = "fa"
)

// Catalog renders localized alert text
type Catalog struct {
	locale   string
	labels   map[snapshot.Metric]string
	titles   map[Severity]string
	message  map[Severity]string
	units    map[snapshot.Unit]string
	digitsFn func(string) string
}

// Text is the rendered title and message of one alert
type Text struct {
	Title   string
	Message string
}

var englishCatalog = &Catalog{
	locale: LocaleEnglish,
	labels: map[snapshot.Metric]string{
		snapshot.MetricCPUUsage:             "CPU usage",
		snapshot.MetricMemoryUsage:          "Memory usage",
		snapshot.MetricDiskUsage:            "Disk usage",
		snapshot.MetricDatabaseResponseTime: "Database response time",
		snapshot.MetricAPIResponseTime:      "API response time",
		snapshot.MetricErrorRate:            "Error rate",
		snapshot.MetricCeleryFailedTasks:    "Failed background task count",
	},
	titles: map[Severity]string{
		SeverityCritical: "Critical: %s",
		SeverityWarning:  "Warning: %s",
	},
	message: map[Severity]string{
		SeverityCritical: "%s is %s, at or above the critical threshold of %s",
		SeverityWarning:  "%s is %s, at or above the warning threshold of %s",
	},
	units: map[snapshot.Unit]string{
		snapshot.UnitPercent:      "%",
		snapshot.UnitMilliseconds: " ms",
		snapshot.UnitCount:        "",
	},
}

var persianCatalog = &Catalog{
	locale: LocalePersian,
	labels: map[snapshot.Metric]string{
		snapshot.MetricCPUUsage:             "مصرف پردازنده",
		snapshot.MetricMemoryUsage:          "مصرف حافظه",
		snapshot.MetricDiskUsage:            "مصرف دیسک",
		snapshot.MetricDatabaseResponseTime: "زمان پاسخ پایگاه داده",
		snapshot.MetricAPIResponseTime:      "زمان پاسخ API",
		snapshot.MetricErrorRate:            "نرخ خطا",
		snapshot.MetricCeleryFailedTasks:    "وظایف پس‌زمینه ناموفق",
	},
	titles: map[Severity]string{
		SeverityCritical: "بحرانی: %s",
		SeverityWarning:  "هشدار: %s",
	},
	message: map[Severity]string{
		SeverityCritical: "%s برابر %s است و از آستانه بحرانی %s عبور کرده است",
		SeverityWarning:  "%s برابر %s است و از آستانه هشدار %s عبور کرده است",
	},
	units: map[snapshot.Unit]string{
		snapshot.UnitPercent:      "٪",
		snapshot.UnitMilliseconds: " میلی‌ثانیه",
		snapshot.UnitCount:        "",
	},
	digitsFn: toPersianDigits,
}

// CatalogFor returns the catalog for a locale
func CatalogFor(locale string) (*Catalog, error) {
	switch strings.ToLower(strings.TrimSpace(locale)) {
	case "", LocaleEnglish:
		return englishCatalog, nil
	case LocalePersian:
		return persianCatalog, nil
	default:
		return nil, fmt.Errorf("unsupported locale %q", locale)
	}
}

// DefaultCatalog returns the English catalog
func DefaultCatalog() *Catalog {
	return englishCatalog
}

// Locale returns the catalog's locale code
func (c *Catalog) Locale() string {
	return c.locale
}

// Render builds the title and message for a crossed threshold
func (c *Catalog) Render(metric snapshot.Metric, severity Severity, value, threshold float64) Text {
	label, ok := c.labels[metric]
	if !ok {
		label = string(metric)
	}

	unit := metric.Unit()
	return Text{
		Title:   fmt.Sprintf(c.titles[severity], label),
		Message: fmt.Sprintf(c.message[severity], label,
			c.formatValue(value, unit), c.formatValue(threshold, unit)),
	}
}

func (c *Catalog) formatValue(v float64, unit snapshot.Unit) string {
	var s string
	switch unit {
	case snapshot.UnitCount, snapshot.UnitMilliseconds:
		s = strconv.FormatFloat(v, 'f', -1, 64)
	default:
		s = strconv.FormatFloat(v, 'f', 1, 64)
	}
	if c.digitsFn != nil {
		s = c.digitsFn(s)
	}
	return s + c.units[unit]
}

func toPersianDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s) * 2)
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune('۰' + (r - '0'))
		case r == '.':
			b.WriteRune('٫')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
