package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/mybank/loan-engine/internal/domain"
)

type MockLoanRepository struct {
	mock.Mock
}

func (m *MockLoanRepository) Create(ctx context.Context, loan *domain.Loan, initial *domain.LoanVersion) error {
	args := m.Called(ctx, loan, initial)
	return args.Error(0)
}

func (m *MockLoanRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Loan), args.Error(1)
}

func (m *MockLoanRepository) List(ctx context.Context) ([]*domain.Loan, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Loan), args.Error(1)
}

func (m *MockLoanRepository) ActiveFloating(ctx context.Context) ([]*domain.Loan, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Loan), args.Error(1)
}

func (m *MockLoanRepository) ActiveFloatingByBenchmark(ctx context.Context, benchmarkName string) ([]*domain.Loan, error) {
	args := m.Called(ctx, benchmarkName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Loan), args.Error(1)
}

type MockVersionRepository struct {
	mock.Mock
}

func (m *MockVersionRepository) Append(ctx context.Context, version *domain.LoanVersion) error {
	args := m.Called(ctx, version)
	return args.Error(0)
}

func (m *MockVersionRepository) GetCurrent(ctx context.Context, loanID uuid.UUID) (*domain.LoanVersion, error) {
	args := m.Called(ctx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LoanVersion), args.Error(1)
}

func (m *MockVersionRepository) GetByNumber(ctx context.Context, loanID uuid.UUID, versionNumber int) (*domain.LoanVersion, error) {
	args := m.Called(ctx, loanID, versionNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LoanVersion), args.Error(1)
}

func (m *MockVersionRepository) List(ctx context.Context, loanID uuid.UUID) ([]*domain.LoanVersion, error) {
	args := m.Called(ctx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.LoanVersion), args.Error(1)
}

func (m *MockVersionRepository) HasBenchmarkReset(ctx context.Context, loanID uuid.UUID, effectiveDate time.Time) (bool, error) {
	args := m.Called(ctx, loanID, effectiveDate)
	return args.Bool(0), args.Error(1)
}

type MockBenchmarkRepository struct {
	mock.Mock
}

func (m *MockBenchmarkRepository) InsertRate(ctx context.Context, rate *domain.BenchmarkRate) error {
	args := m.Called(ctx, rate)
	return args.Error(0)
}

func (m *MockBenchmarkRepository) LatestAsOf(ctx context.Context, benchmarkName string, asOf time.Time) (*domain.BenchmarkRate, error) {
	args := m.Called(ctx, benchmarkName, asOf)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BenchmarkRate), args.Error(1)
}

func (m *MockBenchmarkRepository) History(ctx context.Context, benchmarkName string) ([]domain.BenchmarkRate, error) {
	args := m.Called(ctx, benchmarkName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.BenchmarkRate), args.Error(1)
}

func (m *MockBenchmarkRepository) Names(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}
