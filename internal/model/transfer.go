package model

// TransferRequest is the payload for creating a transfer between accounts.
// Amount is a decimal string with two fraction digits, as the bank expects.
type TransferRequest struct {
	Amount       string `json:"amount"`
	DueDate      string `json:"due_date,omitempty"`
	Message      string `json:"message,omitempty"`
	ToAccount    string `json:"to_account"`
	FromAccount  string `json:"from_account"`
	CurrencyCode string `json:"currency_code,omitempty"`
}

// TransferResponse is the bank's reply to a transfer request. A transfer that
// was accepted over the wire can still fail: the errors array carries embedded
// failures distinct from transport errors.
type TransferResponse struct {
	Errors    []APIError `json:"errors"`
	PaymentID string     `json:"payment_id,omitempty"`
	Status    string     `json:"status,omitempty"`
}
