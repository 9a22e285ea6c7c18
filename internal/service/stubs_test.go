package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/nurpe/wcpms-billing/internal/config"
	"github.com/nurpe/wcpms-billing/internal/model"
)

// The stub repositories below keep everything in memory and ignore the
// tx argument; runTx passes straight through when the repository has no
// database, so service logic is exercised without Postgres.

type stubContractRepo struct {
	mu     sync.Mutex
	nextID uint
	items  map[uint]*model.Contract
}

func newStubContractRepo() *stubContractRepo {
	return &stubContractRepo{nextID: 1, items: make(map[uint]*model.Contract)}
}

func (r *stubContractRepo) DB() *gorm.DB { return nil }

func (r *stubContractRepo) FindByID(_ context.Context, _ *gorm.DB, id uint) (*model.Contract, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	contract, ok := r.items[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cloned := *contract
	return &cloned, nil
}

func (r *stubContractRepo) Create(_ context.Context, _ *gorm.DB, contract *model.Contract) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if contract.ID == 0 {
		contract.ID = r.nextID
		r.nextID++
	}
	cloned := *contract
	r.items[contract.ID] = &cloned
	return nil
}

func (r *stubContractRepo) Update(_ context.Context, _ *gorm.DB, contract *model.Contract) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cloned := *contract
	r.items[contract.ID] = &cloned
	return nil
}

func (r *stubContractRepo) ListExpirable(_ context.Context, _ *gorm.DB, asOf time.Time) ([]model.Contract, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Contract
	for _, contract := range r.items {
		if contract.Status == model.ContractStatusActive && contract.EndDate != nil && contract.EndDate.Before(asOf) {
			out = append(out, *contract)
		}
	}
	return out, nil
}

func (r *stubContractRepo) CountByNumberPrefix(_ context.Context, _ *gorm.DB, prefix string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, contract := range r.items {
		if strings.HasPrefix(contract.ContractNumber, prefix) {
			count++
		}
	}
	return count, nil
}

type stubCustomerRepo struct {
	items map[uint]*model.Customer
}

func newStubCustomerRepo(customers ...*model.Customer) *stubCustomerRepo {
	r := &stubCustomerRepo{items: make(map[uint]*model.Customer)}
	for _, customer := range customers {
		r.items[customer.ID] = customer
	}
	return r
}

func (r *stubCustomerRepo) FindByID(_ context.Context, _ *gorm.DB, id uint) (*model.Customer, error) {
	customer, ok := r.items[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cloned := *customer
	return &cloned, nil
}

type stubAuditRepo struct {
	mu      sync.Mutex
	nextID  uint
	entries []model.AuditEntry
}

func newStubAuditRepo() *stubAuditRepo {
	return &stubAuditRepo{nextID: 1}
}

func (r *stubAuditRepo) Append(_ context.Context, _ *gorm.DB, entry *model.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry.ID = r.nextID
	entry.CreatedAt = time.Now()
	r.nextID++
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *stubAuditRepo) ListBySubject(_ context.Context, _ *gorm.DB, subjectType string, subjectID uint) ([]model.AuditEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.AuditEntry
	for _, entry := range r.entries {
		if entry.SubjectType == subjectType && entry.SubjectID == subjectID {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (r *stubAuditRepo) last() *model.AuditEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.entries) == 0 {
		return nil
	}
	entry := r.entries[len(r.entries)-1]
	return &entry
}

type stubInvoiceRepo struct {
	mu     sync.Mutex
	nextID uint
	items  map[uint]*model.Invoice
}

func newStubInvoiceRepo() *stubInvoiceRepo {
	return &stubInvoiceRepo{nextID: 1, items: make(map[uint]*model.Invoice)}
}

func (r *stubInvoiceRepo) DB() *gorm.DB { return nil }

func (r *stubInvoiceRepo) FindByID(_ context.Context, _ *gorm.DB, id uint) (*model.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	invoice, ok := r.items[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cloned := *invoice
	return &cloned, nil
}

func (r *stubInvoiceRepo) Create(_ context.Context, _ *gorm.DB, invoice *model.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if invoice.ID == 0 {
		invoice.ID = r.nextID
		r.nextID++
	}
	cloned := *invoice
	r.items[invoice.ID] = &cloned
	return nil
}

func (r *stubInvoiceRepo) Update(_ context.Context, _ *gorm.DB, invoice *model.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cloned := *invoice
	r.items[invoice.ID] = &cloned
	return nil
}

func (r *stubInvoiceRepo) ListOverdue(_ context.Context, _ *gorm.DB, asOf time.Time) ([]model.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Invoice
	for _, invoice := range r.items {
		if invoice.PaymentStatus == model.PaymentStatusPending && invoice.DueDate.Before(asOf) {
			out = append(out, *invoice)
		}
	}
	return out, nil
}

func (r *stubInvoiceRepo) ListByPeriod(_ context.Context, _ *gorm.DB, from, to time.Time) ([]model.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Invoice
	for _, invoice := range r.items {
		if !invoice.InvoiceDate.Before(from) && invoice.InvoiceDate.Before(to) {
			out = append(out, *invoice)
		}
	}
	return out, nil
}

type stubReadingRepo struct {
	mu    sync.Mutex
	items map[uint]*model.MeterReading
}

func newStubReadingRepo(readings ...*model.MeterReading) *stubReadingRepo {
	r := &stubReadingRepo{items: make(map[uint]*model.MeterReading)}
	for _, reading := range readings {
		cloned := *reading
		r.items[reading.ID] = &cloned
	}
	return r
}

func (r *stubReadingRepo) FindByID(_ context.Context, _ *gorm.DB, id uint) (*model.MeterReading, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reading, ok := r.items[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cloned := *reading
	return &cloned, nil
}

func (r *stubReadingRepo) Update(_ context.Context, _ *gorm.DB, reading *model.MeterReading) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cloned := *reading
	r.items[reading.ID] = &cloned
	return nil
}

func (r *stubReadingRepo) ListUnbilled(_ context.Context, _ *gorm.DB, contractID uint) ([]model.MeterReading, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.MeterReading
	for _, reading := range r.items {
		if reading.ContractID == contractID && reading.Status == model.ReadingStatusCompleted && !reading.Billed() {
			out = append(out, *reading)
		}
	}
	return out, nil
}

type stubFeeRepo struct {
	mu    sync.Mutex
	items map[uint]*model.CalibrationFee
}

func newStubFeeRepo(fees ...*model.CalibrationFee) *stubFeeRepo {
	r := &stubFeeRepo{items: make(map[uint]*model.CalibrationFee)}
	for _, fee := range fees {
		cloned := *fee
		r.items[fee.ID] = &cloned
	}
	return r
}

func (r *stubFeeRepo) FindByID(_ context.Context, _ *gorm.DB, id uint) (*model.CalibrationFee, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fee, ok := r.items[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cloned := *fee
	return &cloned, nil
}

func (r *stubFeeRepo) Update(_ context.Context, _ *gorm.DB, fee *model.CalibrationFee) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cloned := *fee
	r.items[fee.ID] = &cloned
	return nil
}

type stubTariffRepo struct {
	tariffs map[string]*model.Tariff
}

func newStubTariffRepo(tariffs ...*model.Tariff) *stubTariffRepo {
	r := &stubTariffRepo{tariffs: make(map[string]*model.Tariff)}
	for _, tariff := range tariffs {
		r.tariffs[tariff.PriceTypeCode] = tariff
	}
	return r
}

func (r *stubTariffRepo) ActiveByPriceType(_ context.Context, _ *gorm.DB, priceTypeCode string) (*model.Tariff, error) {
	tariff, ok := r.tariffs[priceTypeCode]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cloned := *tariff
	return &cloned, nil
}

type stubRequestRepo struct {
	mu     sync.Mutex
	nextID uint
	items  map[uint]*model.ApprovalRequest
}

func newStubRequestRepo() *stubRequestRepo {
	return &stubRequestRepo{nextID: 1, items: make(map[uint]*model.ApprovalRequest)}
}

func (r *stubRequestRepo) FindByID(_ context.Context, _ *gorm.DB, id uint) (*model.ApprovalRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	request, ok := r.items[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cloned := *request
	return &cloned, nil
}

func (r *stubRequestRepo) Create(_ context.Context, _ *gorm.DB, request *model.ApprovalRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if request.ID == 0 {
		request.ID = r.nextID
		r.nextID++
	}
	cloned := *request
	r.items[request.ID] = &cloned
	return nil
}

func (r *stubRequestRepo) Update(_ context.Context, _ *gorm.DB, request *model.ApprovalRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cloned := *request
	r.items[request.ID] = &cloned
	return nil
}

func (r *stubRequestRepo) ExistsPending(_ context.Context, _ *gorm.DB, contractID uint, requestType model.RequestType) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, request := range r.items {
		if request.ContractID == contractID && request.Type == requestType && request.Status == model.ApprovalStatusPending {
			return true, nil
		}
	}
	return false, nil
}

type recordingNotifier struct {
	mu             sync.Mutex
	contractEvents []string
	invoiceNumbers []string
}

func (n *recordingNotifier) ContractStatusChanged(_ context.Context, _ *model.Contract, event string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.contractEvents = append(n.contractEvents, event)
}

func (n *recordingNotifier) InvoiceIssued(_ context.Context, invoice *model.Invoice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.invoiceNumbers = append(n.invoiceNumbers, invoice.InvoiceNumber)
}

func testConfig() *config.Config {
	return &config.Config{
		Billing: config.BillingConfig{
			ServiceVATRate:      decimal.NewFromInt(5),
			InstallationVATRate: decimal.NewFromInt(10),
			DueDays:             15,
			LateFee:             decimal.NewFromInt(35000),
			MinContractDays:     365,
			SchedulerTick:       time.Hour,
		},
	}
}

func datePtr(year int, month time.Month, day int) *time.Time {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return &t
}

func uintPtr(v uint) *uint { return &v }

func testPrincipal() model.Principal {
	return model.Principal{UserID: 7, Role: "service_staff", FullName: "Test Operator"}
}
