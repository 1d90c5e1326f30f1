package repository

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/segyhp/loan-ledger/internal/domain"
)

// Memory is an in-process Store for development and tests.
//
// It has no row locks: GetByIDForUpdate is a plain read, and per-loan exclusivity
// must come from a lock.Locker. WithinTx buffers writes and commits them all at
// once, re-checking loan versions so a stale snapshot can never overwrite a newer one.
type Memory struct {
	mu        sync.RWMutex
	loans     map[string]domain.Loan
	payments  map[string][]domain.Payment
	borrowers map[string]domain.Borrower
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		loans:     make(map[string]domain.Loan),
		payments:  make(map[string][]domain.Payment),
		borrowers: make(map[string]domain.Borrower),
	}
}

func (m *Memory) Loans() LoanRepository {
	return &memLoanRepo{m: m}
}

func (m *Memory) Payments() PaymentRepository {
	return &memPaymentRepo{m: m}
}

func (m *Memory) Borrowers() BorrowerRepository {
	return &memBorrowerRepo{m: m}
}

func (m *Memory) Ping(context.Context) error {
	return nil
}

// WithinTx runs fn against a staging area and publishes its writes only if fn succeeds.
func (m *Memory) WithinTx(ctx context.Context, fn func(uow UnitOfWork) error) error {
	tx := &memTx{
		m:        m,
		loans:    make(map[string]domain.Loan),
		created:  make(map[string]bool),
		expected: make(map[string]int),
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return tx.commit()
}

type memTx struct {
	m        *Memory
	loans    map[string]domain.Loan
	created  map[string]bool
	expected map[string]int // committed version each updated loan was read at
	payments []domain.Payment
}

func (tx *memTx) Loans() LoanRepository {
	return &memLoanRepo{m: tx.m, tx: tx}
}

func (tx *memTx) Payments() PaymentRepository {
	return &memPaymentRepo{m: tx.m, tx: tx}
}

func (tx *memTx) commit() error {
	tx.m.mu.Lock()
	defer tx.m.mu.Unlock()

	// Check everything first so the write below cannot fail halfway.
	for id := range tx.created {
		if _, exists := tx.m.loans[id]; exists {
			return ErrDuplicate
		}
	}
	for id, version := range tx.expected {
		current, ok := tx.m.loans[id]
		if !ok {
			return ErrNotFound
		}
		if current.Version != version {
			return ErrVersionConflict
		}
	}
	for _, p := range tx.payments {
		if _, ok := tx.m.loans[p.LoanID]; !ok && !tx.created[p.LoanID] {
			return ErrNotFound
		}
	}

	for id, l := range tx.loans {
		tx.m.loans[id] = l
	}
	for _, p := range tx.payments {
		tx.m.payments[p.LoanID] = append(tx.m.payments[p.LoanID], p)
	}
	return nil
}

type memLoanRepo struct {
	m  *Memory
	tx *memTx
}

func (r *memLoanRepo) Create(_ context.Context, loan *domain.Loan) error {
	if r.tx != nil {
		if _, staged := r.tx.loans[loan.ID]; staged {
			return ErrDuplicate
		}
		r.tx.loans[loan.ID] = *loan
		r.tx.created[loan.ID] = true
		return nil
	}

	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, exists := r.m.loans[loan.ID]; exists {
		return ErrDuplicate
	}
	r.m.loans[loan.ID] = *loan
	return nil
}

func (r *memLoanRepo) GetByID(_ context.Context, id string) (*domain.Loan, error) {
	if r.tx != nil {
		if l, ok := r.tx.loans[id]; ok {
			return &l, nil
		}
	}

	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	l, ok := r.m.loans[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &l, nil
}

func (r *memLoanRepo) GetByIDForUpdate(ctx context.Context, id string) (*domain.Loan, error) {
	return r.GetByID(ctx, id)
}

func (r *memLoanRepo) Update(ctx context.Context, loan *domain.Loan) error {
	if r.tx != nil {
		current, err := r.GetByID(ctx, loan.ID)
		if err != nil {
			return err
		}
		if current.Version != loan.Version {
			return ErrVersionConflict
		}
		if _, seen := r.tx.expected[loan.ID]; !seen && !r.tx.created[loan.ID] {
			r.tx.expected[loan.ID] = loan.Version
		}
		loan.Version++
		r.tx.loans[loan.ID] = *loan
		return nil
	}

	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	current, ok := r.m.loans[loan.ID]
	if !ok {
		return ErrNotFound
	}
	if current.Version != loan.Version {
		return ErrVersionConflict
	}
	loan.Version++
	r.m.loans[loan.ID] = *loan
	return nil
}

func (r *memLoanRepo) List(_ context.Context, borrowerID string) ([]*domain.Loan, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	loans := make([]*domain.Loan, 0, len(r.m.loans))
	for _, l := range r.m.loans {
		if borrowerID != "" && l.BorrowerID != borrowerID {
			continue
		}
		l := l
		loans = append(loans, &l)
	}
	sort.Slice(loans, func(i, j int) bool {
		if loans[i].CreatedAt.Equal(loans[j].CreatedAt) {
			return loans[i].ID < loans[j].ID
		}
		return loans[i].CreatedAt.Before(loans[j].CreatedAt)
	})
	return loans, nil
}

type memPaymentRepo struct {
	m  *Memory
	tx *memTx
}

func (r *memPaymentRepo) Create(_ context.Context, payment *domain.Payment) error {
	if r.tx != nil {
		r.tx.payments = append(r.tx.payments, *payment)
		return nil
	}

	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.loans[payment.LoanID]; !ok {
		return ErrNotFound
	}
	r.m.payments[payment.LoanID] = append(r.m.payments[payment.LoanID], *payment)
	return nil
}

func (r *memPaymentRepo) GetByLoanID(_ context.Context, loanID string) ([]*domain.Payment, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	stored := r.m.payments[loanID]
	payments := make([]*domain.Payment, 0, len(stored))
	for i := range stored {
		p := stored[i]
		payments = append(payments, &p)
	}
	sort.SliceStable(payments, func(i, j int) bool {
		return payments[i].PaymentDate.Before(payments[j].PaymentDate)
	})
	return payments, nil
}

func (r *memPaymentRepo) GetTotals(ctx context.Context, loanID string) (domain.PaymentTotals, error) {
	payments, err := r.GetByLoanID(ctx, loanID)
	if err != nil {
		return domain.PaymentTotals{}, err
	}

	var totals domain.PaymentTotals
	for _, p := range payments {
		totals.Add(p)
	}
	return totals, nil
}

type memBorrowerRepo struct {
	m *Memory
}

func (r *memBorrowerRepo) Create(_ context.Context, b *domain.Borrower) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, exists := r.m.borrowers[b.ID]; exists {
		return ErrDuplicate
	}
	r.m.borrowers[b.ID] = *b
	return nil
}

func (r *memBorrowerRepo) GetByID(_ context.Context, id string) (*domain.Borrower, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	b, ok := r.m.borrowers[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &b, nil
}

func (r *memBorrowerRepo) List(_ context.Context) ([]*domain.Borrower, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	borrowers := make([]*domain.Borrower, 0, len(r.m.borrowers))
	for _, b := range r.m.borrowers {
		b := b
		borrowers = append(borrowers, &b)
	}
	sort.Slice(borrowers, func(i, j int) bool {
		if c := strings.Compare(borrowers[i].Name, borrowers[j].Name); c != 0 {
			return c < 0
		}
		return borrowers[i].CreatedAt.Before(borrowers[j].CreatedAt)
	})
	return borrowers, nil
}
