package domain

// DayBlock holds the accumulated amounts of one calendar day, keyed by sub5.
// Values are decoded loosely so that hand-edited files with non-numeric
// entries still load.
type DayBlock struct {
	Date string         `json:"date"`
	Sums map[string]any `json:"sums"`
}

// IncomeRecord is one line of the income statement log. Sub1 carries the
// campaign group label, not the raw sub1 parameter.
type IncomeRecord struct {
	Sub1 string `json:"sub1"`
	Sub5 string `json:"sub5"`
	Sum  string `json:"sum"`
	Sub6 string `json:"sub6"`
	Date string `json:"date"`
}
