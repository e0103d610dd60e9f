package schedule

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mybank/loan-engine/internal/domain"
	customError "github.com/mybank/loan-engine/pkg/errors"
)

func TestResolve_ValidTermsPasses(t *testing.T) {
	tl, err := Resolve(decimal.NewFromInt(1000000), 120, nil, nil)
	require.NoError(t, err)
	assert.False(t, tl.HasPhases())
	assert.True(t, tl.DisbursedThrough(date(2025, time.January, 1)).Equal(decimal.NewFromInt(1000000)))
}

func TestResolve_TenureBounds(t *testing.T) {
	_, err := Resolve(decimal.NewFromInt(1000), 0, nil, nil)
	assert.Equal(t, customError.ErrCodeValidation, customError.Code(err))

	_, err = Resolve(decimal.NewFromInt(1000), 601, nil, nil)
	assert.Equal(t, customError.ErrCodeValidation, customError.Code(err))

	_, err = Resolve(decimal.NewFromInt(1000), 600, nil, nil)
	assert.NoError(t, err)
}

func TestResolve_PhaseSumMustEqualPrincipal(t *testing.T) {
	phases := []domain.DisbursementPhase{
		{Sequence: 1, Date: date(2025, time.January, 1), Amount: decimal.NewFromInt(400000)},
		{Sequence: 2, Date: date(2025, time.March, 1), Amount: decimal.NewFromInt(500000)},
	}
	_, err := Resolve(decimal.NewFromInt(1000000), 120, phases, nil)
	assert.Equal(t, customError.ErrCodeValidation, customError.Code(err))
}

func TestResolve_PhaseSequenceMustBeContiguous(t *testing.T) {
	phases := []domain.DisbursementPhase{
		{Sequence: 1, Date: date(2025, time.January, 1), Amount: decimal.NewFromInt(400000)},
		{Sequence: 3, Date: date(2025, time.March, 1), Amount: decimal.NewFromInt(600000)},
	}
	_, err := Resolve(decimal.NewFromInt(1000000), 120, phases, nil)
	assert.Equal(t, customError.ErrCodeValidation, customError.Code(err))
}

func TestResolve_PhaseDatesMustFollowSequence(t *testing.T) {
	phases := []domain.DisbursementPhase{
		{Sequence: 1, Date: date(2025, time.March, 1), Amount: decimal.NewFromInt(400000)},
		{Sequence: 2, Date: date(2025, time.January, 1), Amount: decimal.NewFromInt(600000)},
	}
	_, err := Resolve(decimal.NewFromInt(1000000), 120, phases, nil)
	assert.Equal(t, customError.ErrCodeValidation, customError.Code(err))
}

func TestResolve_DisbursedThroughAccumulates(t *testing.T) {
	phases := []domain.DisbursementPhase{
		{Sequence: 1, Date: date(2025, time.January, 10), Amount: decimal.NewFromInt(400000)},
		{Sequence: 2, Date: date(2025, time.March, 10), Amount: decimal.NewFromInt(600000)},
	}
	tl, err := Resolve(decimal.NewFromInt(1000000), 120, phases, nil)
	require.NoError(t, err)

	assert.True(t, tl.DisbursedThrough(date(2025, time.January, 5)).IsZero())
	assert.True(t, tl.DisbursedThrough(date(2025, time.February, 1)).Equal(decimal.NewFromInt(400000)))
	assert.True(t, tl.FullyDisbursed(date(2025, time.March, 10)))
	assert.False(t, tl.FullyDisbursed(date(2025, time.March, 9)))
}

func TestResolve_MoratoriumWindows(t *testing.T) {
	mor := []domain.MoratoriumPeriod{
		{StartMonth: 4, EndMonth: 6, Type: domain.MoratoriumFull},
	}
	tl, err := Resolve(decimal.NewFromInt(1000000), 24, nil, mor)
	require.NoError(t, err)

	_, ok := tl.MoratoriumFor(3)
	assert.False(t, ok)
	got, ok := tl.MoratoriumFor(5)
	assert.True(t, ok)
	assert.Equal(t, domain.MoratoriumFull, got.Type)
}

func TestResolve_MoratoriumBeyondTenureRejected(t *testing.T) {
	mor := []domain.MoratoriumPeriod{
		{StartMonth: 20, EndMonth: 30, Type: domain.MoratoriumFull},
	}
	_, err := Resolve(decimal.NewFromInt(1000000), 24, nil, mor)
	assert.Equal(t, customError.ErrCodeValidation, customError.Code(err))
}

func TestResolve_MoratoriumCoveringFinalMonthRejected(t *testing.T) {
	// A window running through the last month leaves no installment to
	// close the balance.
	mor := []domain.MoratoriumPeriod{
		{StartMonth: 22, EndMonth: 24, Type: domain.MoratoriumFull},
	}
	_, err := Resolve(decimal.NewFromInt(1000000), 24, nil, mor)
	assert.Equal(t, customError.ErrCodeValidation, customError.Code(err))

	mor[0].EndMonth = 23
	_, err = Resolve(decimal.NewFromInt(1000000), 24, nil, mor)
	assert.NoError(t, err)
}

func TestResolve_OverlappingMoratoriumsRejected(t *testing.T) {
	mor := []domain.MoratoriumPeriod{
		{StartMonth: 4, EndMonth: 8, Type: domain.MoratoriumFull},
		{StartMonth: 6, EndMonth: 10, Type: domain.MoratoriumInterestOnly},
	}
	_, err := Resolve(decimal.NewFromInt(1000000), 24, nil, mor)
	assert.Equal(t, customError.ErrCodeValidation, customError.Code(err))
}

func TestResolve_PartialMoratoriumRequiresAmount(t *testing.T) {
	mor := []domain.MoratoriumPeriod{
		{StartMonth: 4, EndMonth: 6, Type: domain.MoratoriumPartial},
	}
	_, err := Resolve(decimal.NewFromInt(1000000), 24, nil, mor)
	assert.Equal(t, customError.ErrCodeValidation, customError.Code(err))
}
