package cfdi_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/afero"

	"github.com/jhoicas/cfdi-engine/internal/application/cfdi"
	"github.com/jhoicas/cfdi-engine/internal/domain"
	"github.com/jhoicas/cfdi-engine/internal/domain/entity"
	"github.com/jhoicas/cfdi-engine/internal/domain/repository"
	infracfdi "github.com/jhoicas/cfdi-engine/internal/infrastructure/cfdi"
	"github.com/jhoicas/cfdi-engine/internal/infrastructure/storage"
	"github.com/jhoicas/cfdi-engine/pkg/sat"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var fixedNow = time.Date(2026, 10, 17, 10, 30, 0, 0, time.UTC)

func issuer() entity.IssuerProfile {
	return entity.IssuerProfile{
		RFC:            "EKU9003173C9",
		Name:           "Escuela Kemper Urgate",
		TaxRegime:      sat.RegimeGeneral,
		PostalCode:     "42501",
		DefaultTaxRate: d("0.16"),
	}
}

func customer(id string) *entity.Customer {
	return &entity.Customer{
		ID:              id,
		Name:            "Universidad Robotica Española",
		RFC:             "URE180429TM6",
		TaxRegime:       sat.RegimeGeneral,
		PostalCode:      "86991",
		CFDIUse:         sat.UseGeneralExpenses,
		RequiresInvoice: true,
	}
}

// saleTwoLines 100 + 200 con descuento global de 30: base 270, IVA 43.20, total 313.20.
func saleTwoLines(id, customerID string) *entity.Sale {
	return &entity.Sale{
		ID:         id,
		CustomerID: customerID,
		Status:     entity.SaleStatusActive,
		Method:     "cash",
		Subtotal:   d("300"),
		Discount:   d("30"),
		Tax:        d("43.20"),
		Total:      d("313.20"),
		Lines: []entity.SaleLine{
			{ProductID: "p1", SKU: "SKU-1", Description: "Cuaderno", Quantity: d("1"), UnitPrice: d("100")},
			{ProductID: "p2", SKU: "SKU-2", Description: "Mochila", Quantity: d("2"), UnitPrice: d("100")},
		},
	}
}

// creditSale venta a crédito de 1000 + IVA.
func creditSale(id, customerID string) *entity.Sale {
	return &entity.Sale{
		ID:         id,
		CustomerID: customerID,
		Status:     entity.SaleStatusActive,
		Method:     "credit",
		IsCredit:   true,
		Subtotal:   d("1000"),
		Tax:        d("160"),
		Total:      d("1160"),
		Lines: []entity.SaleLine{
			{ProductID: "p1", SKU: "SRV-1", Description: "Servicio", Quantity: d("1"), UnitPrice: d("1000")},
		},
	}
}

// ── Base de datos en memoria ─────────────────────────────────────────────────

type memDB struct {
	mu          sync.Mutex
	docs        map[string]*entity.FiscalDocument
	sales       map[string]*entity.Sale
	customers   map[string]*entity.Customer
	receivables map[string]*entity.Receivable
	folios      map[string]int64

	cancelSaleErr  error
	cancelledSales []string
	applyErr       map[string]error // por folio fiscal relacionado
	applied        []cfdi.PaymentApplication
}

func newMemDB() *memDB {
	return &memDB{
		docs:        map[string]*entity.FiscalDocument{},
		sales:       map[string]*entity.Sale{},
		customers:   map[string]*entity.Customer{},
		receivables: map[string]*entity.Receivable{},
		folios:      map[string]int64{},
		applyErr:    map[string]error{},
	}
}

func cloneDoc(doc *entity.FiscalDocument) *entity.FiscalDocument {
	c := *doc
	return &c
}

// RunFiscal serializa las transacciones y descarta los cambios si fn falla.
func (m *memDB) RunFiscal(ctx context.Context, fn func(ctx context.Context, tx cfdi.FiscalTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := make(map[string]*entity.FiscalDocument, len(m.docs))
	for k, v := range m.docs {
		snapshot[k] = cloneDoc(v)
	}
	folios := make(map[string]int64, len(m.folios))
	for k, v := range m.folios {
		folios[k] = v
	}
	recs := make(map[string]entity.Receivable, len(m.receivables))
	for k, v := range m.receivables {
		recs[k] = *v
	}

	if err := fn(ctx, &memTx{db: m}); err != nil {
		m.docs = snapshot
		m.folios = folios
		for k, v := range recs {
			r := v
			m.receivables[k] = &r
		}
		return err
	}
	return nil
}

// liveDocs comprobantes no borrados ordenados por creación.
func (m *memDB) liveDocs() []*entity.FiscalDocument {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.FiscalDocument
	for _, v := range m.docs {
		if v.DeletedAt == nil {
			out = append(out, cloneDoc(v))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

type memTx struct{ db *memDB }

func (t *memTx) Documents() repository.FiscalDocumentRepository { return memDocs{t.db} }
func (t *memTx) Sales() repository.SaleRepository               { return memSales{t.db} }
func (t *memTx) Customers() repository.CustomerRepository       { return memCustomers{t.db} }
func (t *memTx) Receivables() repository.ReceivableRepository   { return memReceivables{t.db} }
func (t *memTx) SaleCanceller() cfdi.SaleCanceller              { return memCanceller{t.db} }
func (t *memTx) PaymentApplier() cfdi.PaymentApplier            { return memApplier{t.db} }

func (t *memTx) Savepoint(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type memDocs struct{ db *memDB }

func (r memDocs) Create(_ context.Context, doc *entity.FiscalDocument) error {
	for _, v := range r.db.docs {
		if doc.UUID != "" && v.UUID == doc.UUID {
			return domain.ErrDuplicateDocument
		}
		if doc.Kind == sat.KindIncome && !doc.IsAdvance && doc.SaleID != "" &&
			v.SaleID == doc.SaleID && v.Kind == sat.KindIncome && !v.IsAdvance && v.IsLive() {
			return domain.ErrDuplicateDocument
		}
	}
	r.db.docs[doc.ID] = cloneDoc(doc)
	return nil
}

func (r memDocs) Update(_ context.Context, doc *entity.FiscalDocument) error {
	if _, ok := r.db.docs[doc.ID]; !ok {
		return domain.ErrNotFound
	}
	r.db.docs[doc.ID] = cloneDoc(doc)
	return nil
}

func (r memDocs) Delete(_ context.Context, id string) error {
	delete(r.db.docs, id)
	return nil
}

func (r memDocs) SoftDelete(_ context.Context, id string) error {
	doc, ok := r.db.docs[id]
	if !ok {
		return domain.ErrNotFound
	}
	now := fixedNow
	doc.DeletedAt = &now
	return nil
}

func (r memDocs) GetByID(_ context.Context, id string) (*entity.FiscalDocument, error) {
	if v, ok := r.db.docs[id]; ok && v.DeletedAt == nil {
		return cloneDoc(v), nil
	}
	return nil, nil
}

func (r memDocs) GetByUUID(_ context.Context, uuid string, includeDeleted bool) (*entity.FiscalDocument, error) {
	for _, v := range r.db.docs {
		if strings.EqualFold(v.UUID, uuid) && (includeDeleted || v.DeletedAt == nil) {
			return cloneDoc(v), nil
		}
	}
	return nil, nil
}

func (r memDocs) ListBySale(_ context.Context, saleID string, kind sat.DocumentKind) ([]*entity.FiscalDocument, error) {
	var out []*entity.FiscalDocument
	for _, v := range r.db.docs {
		if v.SaleID == saleID && v.Kind == kind && v.DeletedAt == nil {
			out = append(out, cloneDoc(v))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r memDocs) NextFolio(_ context.Context, series string) (int64, error) {
	r.db.folios[series]++
	return r.db.folios[series], nil
}

type memSales struct{ db *memDB }

func (r memSales) GetByID(_ context.Context, id string) (*entity.Sale, error) {
	return r.db.sales[id], nil
}

func (r memSales) GetForUpdate(ctx context.Context, id string) (*entity.Sale, error) {
	return r.GetByID(ctx, id)
}

type memCustomers struct{ db *memDB }

func (r memCustomers) GetByID(_ context.Context, id string) (*entity.Customer, error) {
	return r.db.customers[id], nil
}

type memReceivables struct{ db *memDB }

func (r memReceivables) GetByID(_ context.Context, id string) (*entity.Receivable, error) {
	if v, ok := r.db.receivables[id]; ok {
		c := *v
		return &c, nil
	}
	return nil, nil
}

func (r memReceivables) GetBySale(_ context.Context, saleID string) (*entity.Receivable, error) {
	for _, v := range r.db.receivables {
		if v.SaleID == saleID {
			c := *v
			return &c, nil
		}
	}
	return nil, nil
}

func (r memReceivables) IncrementPartiality(_ context.Context, id string) error {
	v, ok := r.db.receivables[id]
	if !ok {
		return domain.ErrNotFound
	}
	v.PartialityCount++
	return nil
}

type memCanceller struct{ db *memDB }

func (c memCanceller) CancelSale(_ context.Context, saleID string, _ bool) error {
	if c.db.cancelSaleErr != nil {
		return c.db.cancelSaleErr
	}
	c.db.cancelledSales = append(c.db.cancelledSales, saleID)
	if s, ok := c.db.sales[saleID]; ok {
		s.Status = entity.SaleStatusCancelled
	}
	return nil
}

type memApplier struct{ db *memDB }

func (a memApplier) ApplyPayment(_ context.Context, p cfdi.PaymentApplication) error {
	if err, ok := a.db.applyErr[p.RelatedUUID]; ok {
		return err
	}
	a.db.applied = append(a.db.applied, p)
	return nil
}

// ── Colaboradores externos ───────────────────────────────────────────────────

type fakeCerts struct {
	invalid string
	loads   int
}

func (f *fakeCerts) LoadSigningCertificate() (*infracfdi.Certificate, error) {
	f.loads++
	return &infracfdi.Certificate{Serial: "30001000000500003416", NotAfter: fixedNow.AddDate(1, 0, 0)}, nil
}

func (f *fakeCerts) LoadSigningKey() (*infracfdi.KeyMaterial, error) {
	return &infracfdi.KeyMaterial{}, nil
}

func (f *fakeCerts) Validate() infracfdi.ValidationResult {
	if f.invalid != "" {
		return infracfdi.ValidationResult{Message: f.invalid}
	}
	return infracfdi.ValidationResult{Valid: true, Serial: "30001000000500003416", DaysRemaining: 365}
}

// fakeSealer agrega un Sello fijo sin firmar.
type fakeSealer struct{}

func (fakeSealer) Seal(xml []byte, cert *infracfdi.Certificate, _ *infracfdi.KeyMaterial) (*infracfdi.SealResult, error) {
	sealed := strings.Replace(string(xml), "<cfdi:Comprobante ",
		fmt.Sprintf(`<cfdi:Comprobante NoCertificado="%s" Sello="U0VMTE8=" `, cert.Serial), 1)
	return &infracfdi.SealResult{XML: []byte(sealed), Seal: "U0VMTE8="}, nil
}

type fakeSigner struct {
	mu        sync.Mutex
	stamps    int
	cancels   int
	stampErr  error
	cancelErr error
	seq       int
}

func (f *fakeSigner) Stamp(_ context.Context, sealedXML []byte) (*infracfdi.StampResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stamps++
	if f.stampErr != nil {
		return nil, f.stampErr
	}
	f.seq++
	return &infracfdi.StampResult{
		UUID:                 fmt.Sprintf("6f1c2a9e-0b4d-4e8a-9c3f-%012d", f.seq),
		SATSeal:              "U0VMTE9TQVQ=",
		SATCertificateNumber: "30001000000500003456",
		ProviderRFC:          "SPR190613I52",
		StampedAt:            fixedNow,
		XML:                  append([]byte(nil), sealedXML...),
	}, nil
}

func (f *fakeSigner) Cancel(_ context.Context, req infracfdi.CancelRequest) (*infracfdi.CancelResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels++
	if f.cancelErr != nil {
		return nil, f.cancelErr
	}
	return &infracfdi.CancelResult{UUID: req.UUID, Status: "201", CancelledAt: fixedNow}, nil
}

// ── Ensamble ─────────────────────────────────────────────────────────────────

type harness struct {
	db     *memDB
	certs  *fakeCerts
	signer *fakeSigner
	store  *storage.FileStore
	coord  *cfdi.Coordinator
}

func newHarness() *harness {
	h := &harness{
		db:     newMemDB(),
		certs:  &fakeCerts{},
		signer: &fakeSigner{},
		store:  storage.NewFileStore(afero.NewMemMapFs(), "/cfdi"),
	}
	h.coord = cfdi.NewCoordinator(h.db, h.certs, infracfdi.NewXMLBuilder(), fakeSealer{}, h.signer, h.store,
		cfdi.CoordinatorConfig{Issuer: issuer(), Series: "A", PaymentSeries: "P"}, nil).
		WithClock(func() time.Time { return fixedNow })
	return h
}

var errBoom = errors.New("boom")
