package model

// Account represents a bank account visible to the authenticated user.
type Account struct {
	Key              string  `json:"key"`
	AccountNumber    string  `json:"account_number"`
	IBAN             string  `json:"iban,omitempty"`
	Name             string  `json:"name"`
	Description      string  `json:"description,omitempty"`
	Balance          float64 `json:"balance"`
	AvailableBalance float64 `json:"available_balance"`
	CurrencyCode     string  `json:"currency_code,omitempty"`
	ProductType      string  `json:"product_type,omitempty"`
	Type             string  `json:"type,omitempty"`
}

// AccountData is the bank's account listing payload.
type AccountData struct {
	Accounts []Account  `json:"accounts"`
	Errors   []APIError `json:"errors"`
}

// APIError is an error object embedded in an otherwise successful bank
// response. A non-empty errors array means the operation did not complete.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	TraceID string `json:"trace_id,omitempty"`
}
