package bank

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Veraticus/autobank/internal/model"
)

// DemoClient serves canned accounts and transactions so the whole system
// can run without bank credentials. Transfers adjust the in-memory
// balances and are listed back as transactions.
type DemoClient struct {
	mu        sync.Mutex
	accounts  []model.Account
	txns      map[string][]model.Transaction
	transfers []model.TransferRequest
}

var _ Client = (*DemoClient)(nil)

// NewDemoClient creates a demo client with a checking account, a savings
// account, and a credit card, each seeded with sample transactions.
func NewDemoClient() *DemoClient {
	now := time.Now().UnixMilli()
	day := int64(24 * time.Hour / time.Millisecond)

	return &DemoClient{
		accounts: []model.Account{
			{
				Key:              "checking-1",
				AccountNumber:    "12345678901",
				Name:             "Brukskonto",
				Balance:          15420.50,
				AvailableBalance: 15420.50,
				CurrencyCode:     "NOK",
				ProductType:      "CURRENT",
				Type:             "CHECKING",
			},
			{
				Key:              "savings-1",
				AccountNumber:    "12345678902",
				Name:             "Sparekonto",
				Balance:          85000.00,
				AvailableBalance: 85000.00,
				CurrencyCode:     "NOK",
				ProductType:      "SAVINGS",
				Type:             "SAVINGS",
			},
			{
				Key:              "creditcard-1",
				AccountNumber:    "12345678903",
				Name:             "Kredittkort",
				Balance:          -3240.00,
				AvailableBalance: 46760.00,
				CurrencyCode:     "NOK",
				ProductType:      "CREDIT_CARD",
				Type:             "CREDIT_CARD",
			},
		},
		txns: map[string][]model.Transaction{
			"checking-1": {
				{
					ID:            "demo-tx-1",
					Description:   "NETFLIX.COM 866-579-7172",
					Amount:        -179.00,
					Date:          now - day,
					TypeCode:      "VARER",
					TypeText:      "Purchase",
					CurrencyCode:  "NOK",
					BookingStatus: model.BookingStatusBooked,
					AccountKey:    "checking-1",
					AccountName:   "Brukskonto",
				},
				{
					ID:            "demo-tx-2",
					Description:   "REMA 1000 OSLO",
					Amount:        -432.80,
					Date:          now - 2*day,
					TypeCode:      "VARER",
					TypeText:      "Purchase",
					CurrencyCode:  "NOK",
					BookingStatus: model.BookingStatusBooked,
					AccountKey:    "checking-1",
					AccountName:   "Brukskonto",
				},
				{
					ID:            "demo-tx-3",
					Description:   "Lønn fra Arbeidsgiver AS",
					Amount:        32500.00,
					Date:          now - 3*day,
					TypeCode:      "LONN",
					TypeText:      "Salary",
					CurrencyCode:  "NOK",
					BookingStatus: model.BookingStatusBooked,
					AccountKey:    "checking-1",
					AccountName:   "Brukskonto",
				},
				{
					ID:            "demo-tx-4",
					Description:   "VINMONOPOLET OSLO",
					Amount:        -589.90,
					Date:          now,
					TypeCode:      "VARER",
					TypeText:      "Purchase",
					CurrencyCode:  "NOK",
					BookingStatus: model.BookingStatusPending,
					AccountKey:    "checking-1",
					AccountName:   "Brukskonto",
				},
			},
			"savings-1": {
				{
					ID:            "demo-tx-5",
					Description:   "Renter",
					Amount:        112.34,
					Date:          now - 5*day,
					TypeCode:      "RENTER",
					TypeText:      "Interest",
					CurrencyCode:  "NOK",
					BookingStatus: model.BookingStatusBooked,
					AccountKey:    "savings-1",
					AccountName:   "Sparekonto",
				},
			},
			"creditcard-1": {
				{
					ID:            "demo-tx-6",
					Description:   "SPOTIFY P2E4A51234",
					Amount:        -129.00,
					Date:          now - day,
					TypeCode:      "VARER",
					TypeText:      "Purchase",
					CurrencyCode:  "NOK",
					BookingStatus: model.BookingStatusBooked,
					AccountKey:    "creditcard-1",
					AccountName:   "Kredittkort",
				},
			},
		},
	}
}

// GetAccounts implements Client.
func (d *DemoClient) GetAccounts(_ context.Context) (*model.AccountData, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	accounts := make([]model.Account, len(d.accounts))
	copy(accounts, d.accounts)

	return &model.AccountData{Accounts: accounts}, nil
}

// GetTransactions implements Client.
func (d *DemoClient) GetTransactions(_ context.Context, accountKey string) (*model.TransactionResponse, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	txns, ok := d.txns[accountKey]
	if !ok {
		return nil, fmt.Errorf("demo account %s not found", accountKey)
	}

	out := make([]model.Transaction, len(txns))
	copy(out, txns)

	return &model.TransactionResponse{Transactions: out}, nil
}

// CreateTransfer implements Client. The transfer succeeds as long as both
// accounts exist; balances are updated in place.
func (d *DemoClient) CreateTransfer(_ context.Context, req model.TransferRequest) (*model.TransferResponse, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var amount float64
	if _, err := fmt.Sscanf(req.Amount, "%f", &amount); err != nil {
		return &model.TransferResponse{
			Errors: []model.APIError{{Code: "INVALID_AMOUNT", Message: "could not parse amount"}},
		}, nil
	}

	from := d.findByNumber(req.FromAccount)
	to := d.findByNumber(req.ToAccount)
	if from == nil || to == nil {
		return &model.TransferResponse{
			Errors: []model.APIError{{Code: "ACCOUNT_NOT_FOUND", Message: "unknown account number"}},
		}, nil
	}

	from.Balance -= amount
	from.AvailableBalance -= amount
	to.Balance += amount
	to.AvailableBalance += amount
	d.transfers = append(d.transfers, req)

	return &model.TransferResponse{
		PaymentID: "demo-" + uuid.NewString(),
		Status:    "ACCEPTED",
	}, nil
}

// Transfers returns a copy of all transfers executed so far.
func (d *DemoClient) Transfers() []model.TransferRequest {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]model.TransferRequest, len(d.transfers))
	copy(out, d.transfers)
	return out
}

func (d *DemoClient) findByNumber(number string) *model.Account {
	for i := range d.accounts {
		if d.accounts[i].AccountNumber == number {
			return &d.accounts[i]
		}
	}
	return nil
}
