package domain

import (
	"errors"
	"testing"

	"github.com/smallbiznis/groupledger/internal/errs"
	ledgerdomain "github.com/smallbiznis/groupledger/internal/ledger/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapIsTotal(t *testing.T) {
	for _, eventType := range EventTypes() {
		m, err := Map(eventType)
		require.NoError(t, err, eventType)
		assert.True(t, ledgerdomain.ValidEntryType(m.EntryType), eventType)
		assert.True(t, ledgerdomain.ValidDirection(m.Direction), eventType)
	}
	assert.Len(t, mappings, len(EventTypes()))
}

func TestMapTable(t *testing.T) {
	cases := map[MemberEventType]Mapping{
		MemberEventDeposit:        {ledgerdomain.EntryTypeDeposit, ledgerdomain.DirectionCredit},
		MemberEventWithdraw:       {ledgerdomain.EntryTypeWithdraw, ledgerdomain.DirectionDebit},
		MemberEventSharesPurchase: {ledgerdomain.EntryTypeDeposit, ledgerdomain.DirectionCredit},
		MemberEventSharesSale:     {ledgerdomain.EntryTypeWithdraw, ledgerdomain.DirectionDebit},
		MemberEventLoan:           {ledgerdomain.EntryTypeLoanDisbursement, ledgerdomain.DirectionDebit},
		MemberEventLoanPayment:    {ledgerdomain.EntryTypeLoanRepayment, ledgerdomain.DirectionCredit},
		MemberEventInterest:       {ledgerdomain.EntryTypeDeposit, ledgerdomain.DirectionCredit},
		MemberEventFee:            {ledgerdomain.EntryTypeDeposit, ledgerdomain.DirectionCredit},
		MemberEventPenalty:        {ledgerdomain.EntryTypeDeposit, ledgerdomain.DirectionCredit},
	}
	for eventType, want := range cases {
		got, err := Map(eventType)
		require.NoError(t, err)
		assert.Equal(t, want, got, eventType)
	}
}

func TestMapUnknownTypeIsConfigurationError(t *testing.T) {
	_, err := Map("Dividend")
	assert.True(t, errors.Is(err, ErrUnmappedType))
	assert.True(t, errs.IsKind(err, errs.KindConfiguration))
}
