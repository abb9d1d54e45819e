package authsdk

import (
	"errors"
	"net/url"
	"regexp"
	"strconv"
	"time"

	validation "github.com/jellydator/validation"
)

// MaxAuditLogLimit is the largest page GET /api/audit-logs serves.
const MaxAuditLogLimit = 500

// AuditDateLayout is the plain date form accepted for dateFrom and dateTo.
const AuditDateLayout = "2006-01-02"

// AuditLogQuery filters GET /api/audit-logs. Zero fields do not filter.
// Dates take either AuditDateLayout or RFC 3339; a plain DateTo includes
// that whole day.
type AuditLogQuery struct {
	EmployeeID int64  `json:"employeeId"`
	Action     string `json:"action"`
	DateFrom   string `json:"dateFrom"`
	DateTo     string `json:"dateTo"`
	Search     string `json:"search"`
	Limit      int    `json:"limit"`
	Offset     int    `json:"offset"`
}

var actionName = regexp.MustCompile(`^[A-Z_]+$`)

var auditDate = validation.By(func(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if _, _, err := ParseAuditDate(s); err != nil {
		return validation.NewError("validation_audit_date", "must be YYYY-MM-DD or RFC 3339")
	}
	return nil
})

// Validate checks the query before it is sent or served.
func (q *AuditLogQuery) Validate() error {
	return validation.ValidateStruct(q,
		validation.Field(&q.EmployeeID, validation.Min(int64(0))),
		validation.Field(&q.Action, validation.Length(0, 50), validation.Match(actionName)),
		validation.Field(&q.DateFrom, auditDate),
		validation.Field(&q.DateTo, auditDate),
		validation.Field(&q.Search, validation.Length(0, 100)),
		validation.Field(&q.Limit, validation.Min(0), validation.Max(MaxAuditLogLimit)),
		validation.Field(&q.Offset, validation.Min(0)),
	)
}

// Values encodes the query string.
func (q AuditLogQuery) Values() url.Values {
	v := url.Values{}
	if q.EmployeeID > 0 {
		v.Set("employeeId", strconv.FormatInt(q.EmployeeID, 10))
	}
	set := func(key, value string) {
		if value != "" {
			v.Set(key, value)
		}
	}
	set("action", q.Action)
	set("dateFrom", q.DateFrom)
	set("dateTo", q.DateTo)
	set("search", q.Search)
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		v.Set("offset", strconv.Itoa(q.Offset))
	}
	return v
}

// ParseAuditLogQuery reads a query string. Numbers that do not parse are
// reported per field like any other validation failure.
func ParseAuditLogQuery(v url.Values) (AuditLogQuery, error) {
	q := AuditLogQuery{
		Action:   v.Get("action"),
		DateFrom: v.Get("dateFrom"),
		DateTo:   v.Get("dateTo"),
		Search:   v.Get("search"),
	}

	errs := validation.Errors{}
	parseInt := func(key string, into func(int64)) {
		raw := v.Get(key)
		if raw == "" {
			return
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			errs[key] = errors.New("must be an integer")
			return
		}
		into(n)
	}
	parseInt("employeeId", func(n int64) { q.EmployeeID = n })
	parseInt("limit", func(n int64) { q.Limit = int(n) })
	parseInt("offset", func(n int64) { q.Offset = int(n) })
	if len(errs) > 0 {
		return q, errs
	}

	if err := q.Validate(); err != nil {
		return q, err
	}
	return q, nil
}

// ParseAuditDate parses s and reports whether it was a plain date.
func ParseAuditDate(s string) (time.Time, bool, error) {
	if t, err := time.ParseInLocation(AuditDateLayout, s, time.UTC); err == nil {
		return t, true, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	return t, false, err
}
