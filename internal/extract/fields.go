package extract

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Literal markers of the BBOX action grammar.
const (
	PrefixColumnAction      = "ТРК : "
	PrefixTransactionAction = "Тр: "

	MarkerOrderTransferred = "Топливный заказ перемещен"
	MarkerDoseConfigured   = "Доза установлена"
	MarkerDoseSetup        = "Установка дозы"
	MarkerFillRecorded     = "Налив зафиксирован"
	MarkerFuelingStarted   = "На ТРК идет отпуск топлива"
	MarkerFuelingEnded     = "На ТРК закончен отпуск топлива"
	MarkerTransactionEnd   = "Конец транзакции"

	FieldColumn   = "ТРК: "
	FieldFuel     = "Прод.:"
	FieldHose     = "Рукав:"
	FieldCounter  = "Счетчик:"
	transferSplit = "на ТРК:"
	transferFrom  = "ТРК:"
)

// FieldValue returns the trimmed text after key up to the next ';'.
func FieldValue(action, key string) (string, bool) {
	i := strings.Index(action, key)
	if i < 0 {
		return "", false
	}
	rest := action[i+len(key):]
	if j := strings.IndexByte(rest, ';'); j >= 0 {
		rest = rest[:j]
	}
	return strings.TrimSpace(rest), true
}

// ParseDecimal parses a counter reading that may use a decimal comma.
func ParseDecimal(s string) (float64, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	return strconv.ParseFloat(s, 64)
}

// IsNaNReading reports whether a counter reading is the controller's "NAN"
// marker for an aborted transaction.
func IsNaNReading(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), "NAN")
}

// routedColumn parses the column number of a "ТРК : N;..." action.
func routedColumn(action string) (int, error) {
	rest := strings.TrimPrefix(action, PrefixColumnAction)
	if j := strings.IndexByte(rest, ';'); j >= 0 {
		rest = rest[:j]
	}
	return strconv.Atoi(strings.TrimSpace(rest))
}

// transferColumns parses "... с ТРК: 8 на ТРК: 7" into (8, 7).
func transferColumns(action string) (from, to int, err error) {
	i := strings.Index(action, transferFrom)
	if i < 0 {
		return 0, 0, errors.New("no source column")
	}
	parts := strings.Split(action[i+len(transferFrom):], transferSplit)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected one %q separator", transferSplit)
	}
	if from, err = strconv.Atoi(strings.TrimSpace(parts[0])); err != nil {
		return 0, 0, err
	}
	if to, err = strconv.Atoi(strings.TrimSpace(parts[1])); err != nil {
		return 0, 0, err
	}
	return from, to, nil
}

// fillItems returns the ';'-separated items of the parenthesized list of a
// fill record, or nil when the action carries none.
func fillItems(action string) []string {
	i := strings.IndexByte(action, '(')
	if i < 0 {
		return nil
	}
	body := strings.TrimSuffix(strings.TrimSpace(action[i+1:]), ")")
	return strings.Split(body, ";")
}

// afterColon returns the trimmed text after the first ':' of an item.
func afterColon(item string) string {
	if i := strings.IndexByte(item, ':'); i >= 0 {
		return strings.TrimSpace(item[i+1:])
	}
	return strings.TrimSpace(item)
}

// =============================================================================
// TIMESTAMPS
// =============================================================================

const stampLayout = "20060102T15:04:05"

// ParseTimestamp parses a DATETIME value. Three zero digits are appended to
// the raw text, so "20240115T10:30:15" and "20240115T10:30:15123" both
// yield a microsecond-resolution fraction. Timestamps carry no zone and are
// returned in UTC.
func ParseTimestamp(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw) + "000"
	if len(s) <= len(stampLayout) {
		return time.Time{}, fmt.Errorf("too short")
	}
	t, err := time.Parse(stampLayout, s[:len(stampLayout)])
	if err != nil {
		return time.Time{}, err
	}
	frac := strings.TrimPrefix(s[len(stampLayout):], ".")
	if len(frac) == 0 || len(frac) > 6 {
		return time.Time{}, fmt.Errorf("fraction %q must have 1-6 digits", frac)
	}
	for _, c := range frac {
		if c < '0' || c > '9' {
			return time.Time{}, fmt.Errorf("fraction %q is not numeric", frac)
		}
	}
	frac += strings.Repeat("0", 6-len(frac))
	micros, _ := strconv.Atoi(frac)
	return t.Add(time.Duration(micros) * time.Microsecond), nil
}
