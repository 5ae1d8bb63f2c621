package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConditionEvaluate(t *testing.T) {
	netflix := &Transaction{
		ID:            "tx-1",
		Description:   "NETFLIX.COM 866-579-7172",
		Amount:        -179.00,
		TypeCode:      "VARER",
		BookingStatus: BookingStatusBooked,
	}
	salary := &Transaction{
		ID:            "tx-2",
		Description:   "Lønn fra Arbeidsgiver AS",
		Amount:        32500.00,
		TypeCode:      "LONN",
		BookingStatus: BookingStatusPending,
	}

	tests := []struct {
		name      string
		tx        *Transaction
		condition Condition
		want      bool
	}{
		{
			name:      "description matches substring",
			condition: DescriptionMatches("NETFLIX", false),
			tx:        netflix,
			want:      true,
		},
		{
			name:      "description match is case sensitive by default",
			condition: DescriptionMatches("netflix", false),
			tx:        netflix,
			want:      false,
		},
		{
			name:      "case insensitive description match",
			condition: DescriptionMatches("netflix", true),
			tx:        netflix,
			want:      true,
		},
		{
			name:      "malformed regex never matches",
			condition: DescriptionMatches("[invalid", false),
			tx:        netflix,
			want:      false,
		},
		{
			name:      "cleaned description takes precedence",
			condition: DescriptionMatches("^Netflix$", false),
			tx: &Transaction{
				Description:        "NETFLIX.COM 866-579-7172",
				CleanedDescription: "Netflix",
			},
			want: true,
		},
		{
			name:      "amount greater than compares signed values",
			condition: AmountGreaterThan(0),
			tx:        salary,
			want:      true,
		},
		{
			name:      "negative amount is not greater than zero",
			condition: AmountGreaterThan(0),
			tx:        netflix,
			want:      false,
		},
		{
			name:      "amount less than",
			condition: AmountLessThan(-100),
			tx:        netflix,
			want:      true,
		},
		{
			name:      "amount between is inclusive",
			condition: AmountBetween(-179, -179),
			tx:        netflix,
			want:      true,
		},
		{
			name:      "amount between rejects outside range",
			condition: AmountBetween(0, 100),
			tx:        netflix,
			want:      false,
		},
		{
			name:      "amount equals within tolerance",
			condition: AmountEquals(-179.005, 0.01),
			tx:        netflix,
			want:      true,
		},
		{
			name:      "amount equals outside tolerance",
			condition: AmountEquals(-179.5, 0.01),
			tx:        netflix,
			want:      false,
		},
		{
			name:      "transaction type code equality",
			condition: TransactionTypeIs("LONN"),
			tx:        salary,
			want:      true,
		},
		{
			name:      "settled only matches booked",
			condition: IsSettled(),
			tx:        salary,
			want:      false,
		},
		{
			name:      "empty and is vacuously true",
			condition: And(),
			tx:        netflix,
			want:      true,
		},
		{
			name:      "empty or is vacuously false",
			condition: Or(),
			tx:        netflix,
			want:      false,
		},
		{
			name:      "and requires all children",
			condition: And(DescriptionMatches("NETFLIX", false), AmountLessThan(0)),
			tx:        netflix,
			want:      true,
		},
		{
			name:      "and fails on one false child",
			condition: And(DescriptionMatches("NETFLIX", false), AmountGreaterThan(0)),
			tx:        netflix,
			want:      false,
		},
		{
			name:      "or succeeds on one true child",
			condition: Or(DescriptionMatches("SPOTIFY", false), AmountLessThan(0)),
			tx:        netflix,
			want:      true,
		},
		{
			name:      "not inverts",
			condition: Not(IsSettled()),
			tx:        salary,
			want:      true,
		},
		{
			name:      "double negation",
			condition: Not(Not(IsSettled())),
			tx:        netflix,
			want:      true,
		},
		{
			name:      "not with missing child is false",
			condition: Condition{Type: ConditionNot},
			tx:        netflix,
			want:      false,
		},
		{
			name:      "unknown condition type is false",
			condition: Condition{Type: "definitely_not_a_condition"},
			tx:        netflix,
			want:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.condition.Evaluate(tt.tx))
		})
	}
}

func TestRuleMatches(t *testing.T) {
	tx := &Transaction{
		Description:   "NETFLIX.COM",
		Amount:        -179,
		BookingStatus: BookingStatusBooked,
	}

	rule := Rule{
		Conditions: []Condition{
			DescriptionMatches("NETFLIX", false),
			IsSettled(),
		},
	}
	assert.True(t, rule.Matches(tx))

	rule.Conditions = append(rule.Conditions, AmountGreaterThan(0))
	assert.False(t, rule.Matches(tx))

	empty := Rule{}
	assert.True(t, empty.Matches(tx), "empty condition list matches everything")
}

func TestAmountSpecResolve(t *testing.T) {
	tx := &Transaction{Amount: -149.00}

	tests := []struct {
		name string
		spec AmountSpec
		want float64
	}{
		{name: "fixed", spec: Fixed(100), want: 100},
		{name: "transaction amount keeps sign", spec: TransactionAmount(), want: -149},
		{name: "transaction amount abs", spec: TransactionAmountAbs(), want: 149},
		{name: "percentage of absolute amount", spec: Percentage(10), want: 14.9},
		{name: "min picks smallest", spec: MinOf(Fixed(50), TransactionAmountAbs()), want: 50},
		{name: "max picks largest", spec: MaxOf(Fixed(50), TransactionAmountAbs()), want: 149},
		{name: "empty min resolves to zero", spec: MinOf(), want: 0},
		{name: "empty max resolves to zero", spec: MaxOf(), want: 0},
		{name: "unknown spec resolves to zero", spec: AmountSpec{Type: "mystery"}, want: 0},
		{
			name: "nested round-up-to-cap",
			spec: MinOf(Fixed(500), MaxOf(Fixed(0), Percentage(100))),
			want: 149,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.spec.Resolve(tx), 0.0001)
		})
	}
}

func TestConditionJSONRoundTrip(t *testing.T) {
	condition := And(
		DescriptionMatches("NETFLIX", true),
		Or(AmountLessThan(-100), AmountEquals(-179, 0.01)),
		Not(TransactionTypeIs("LONN")),
	)

	data, err := json.Marshal(condition)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"and"`)
	assert.Contains(t, string(data), `"description_matches"`)

	var decoded Condition
	require.NoError(t, json.Unmarshal(data, &decoded))

	tx := &Transaction{Description: "NETFLIX.COM", Amount: -179, TypeCode: "VARER"}
	assert.Equal(t, condition.Evaluate(tx), decoded.Evaluate(tx))
}
