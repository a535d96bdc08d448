// Package cfdi contiene la aritmética fiscal y las reglas locales del SAT que se
// verifican antes de timbrar. No hace I/O.
package cfdi

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/cfdi-engine/internal/domain"
	"github.com/jhoicas/cfdi-engine/pkg/sat"
)

// Tolerance diferencia máxima aceptada entre importes que deben cuadrar (un centavo).
var Tolerance = decimal.New(1, -2)

// Round2 redondea a centavos (half-up, igual que el SAT).
func Round2(d decimal.Decimal) decimal.Decimal { return d.Round(2) }

// WithinTolerance indica si a y b difieren en menos de un centavo.
func WithinTolerance(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThan(Tolerance)
}

// LineInput una línea a distribuir.
type LineInput struct {
	Gross        decimal.Decimal // cantidad * valor unitario
	ItemDiscount decimal.Decimal
	TaxObject    sat.TaxObject
}

// LineAllocation resultado por línea.
type LineAllocation struct {
	Apportioned decimal.Decimal // parte del descuento global
	Discount    decimal.Decimal // descuento propio + Apportioned
	Base        decimal.Decimal // Gross - Discount
	Tax         decimal.Decimal
	TaxObject   sat.TaxObject
}

// AllocationTotals agregados del documento.
type AllocationTotals struct {
	Gross       decimal.Decimal
	Discount    decimal.Decimal
	TaxableBase decimal.Decimal
	ExemptBase  decimal.Decimal
	Tax         decimal.Decimal
}

// Allocation resultado completo de Allocate.
type Allocation struct {
	Lines  []LineAllocation
	Totals AllocationTotals
}

// Allocate distribuye el descuento global en proporción al neto de cada línea, calcula base
// e impuesto por línea y cuadra el residuo de redondeo en la última línea gravada o exenta que
// pueda absorberlo (ver absorbResidual). Ninguna línea queda con base o descuento negativo. La suma de descuentos queda exactamente igual a
// globalDiscount más los descuentos propios.
func Allocate(lines []LineInput, globalDiscount, taxRate decimal.Decimal) (*Allocation, error) {
	if err := validateAllocationInput(lines, globalDiscount, taxRate); err != nil {
		return nil, err
	}

	nets := make([]decimal.Decimal, len(lines))
	sumNet := decimal.Zero
	for i, l := range lines {
		nets[i] = l.Gross.Sub(l.ItemDiscount)
		sumNet = sumNet.Add(nets[i])
	}
	if globalDiscount.GreaterThan(sumNet) {
		return nil, domain.NewFiscalError("allocate", domain.ErrInvalidInput,
			fmt.Sprintf("descuento global %s mayor al neto %s", globalDiscount.StringFixed(2), sumNet.StringFixed(2)))
	}

	out := &Allocation{Lines: make([]LineAllocation, len(lines))}

	apportioned := make([]decimal.Decimal, len(lines))
	if !sumNet.IsZero() && !globalDiscount.IsZero() {
		sum := decimal.Zero
		for i := range lines {
			apportioned[i] = Round2(globalDiscount.Mul(nets[i]).Div(sumNet))
			sum = sum.Add(apportioned[i])
		}
		if residual := globalDiscount.Sub(sum); !residual.IsZero() {
			absorbResidual(lines, nets, apportioned, residual)
		}
	}

	for i, l := range lines {
		la := LineAllocation{
			Apportioned: apportioned[i],
			Discount:    l.ItemDiscount.Add(apportioned[i]),
			Base:        nets[i].Sub(apportioned[i]),
			Tax:         decimal.Zero,
			TaxObject:   l.TaxObject,
		}
		switch l.TaxObject {
		case sat.TaxObjectTaxable:
			la.Tax = Round2(la.Base.Mul(taxRate))
			out.Totals.TaxableBase = out.Totals.TaxableBase.Add(la.Base)
		case sat.TaxObjectExempt:
			out.Totals.ExemptBase = out.Totals.ExemptBase.Add(la.Base)
		}
		out.Lines[i] = la
		out.Totals.Gross = out.Totals.Gross.Add(l.Gross)
		out.Totals.Discount = out.Totals.Discount.Add(la.Discount)
		out.Totals.Tax = out.Totals.Tax.Add(la.Tax)
	}
	return out, nil
}

// absorbResidual cuadra el residuo de redondeo sin dejar ninguna línea con base o descuento negativo.
// Prefiere la última línea gravada o exenta que lo absorba completo, luego cualquier otra línea
// (de la última a la primera); si ninguna puede sola, lo reparte centavo a centavo en ese orden.
func absorbResidual(lines []LineInput, nets, apportioned []decimal.Decimal, residual decimal.Decimal) {
	order := correctionOrder(lines)
	for _, i := range order {
		if canAbsorb(nets[i], apportioned[i], residual) {
			apportioned[i] = apportioned[i].Add(residual)
			return
		}
	}
	cent := Tolerance
	if residual.IsNegative() {
		cent = cent.Neg()
	}
	for !residual.IsZero() {
		moved := false
		for _, i := range order {
			if residual.IsZero() {
				break
			}
			if canAbsorb(nets[i], apportioned[i], cent) {
				apportioned[i] = apportioned[i].Add(cent)
				residual = residual.Sub(cent)
				moved = true
			}
		}
		if !moved {
			// no ocurre con entradas válidas: globalDiscount <= Σ neto
			return
		}
	}
}

// canAbsorb la línea sigue con 0 <= prorrateo <= neto después de sumar delta.
func canAbsorb(net, apportioned, delta decimal.Decimal) bool {
	next := apportioned.Add(delta)
	return !next.IsNegative() && !net.Sub(next).IsNegative()
}

// correctionOrder líneas gravadas o exentas de la última a la primera, después las demás.
func correctionOrder(lines []LineInput) []int {
	order := make([]int, 0, len(lines))
	for i := len(lines) - 1; i >= 0; i-- {
		if lines[i].TaxObject == sat.TaxObjectTaxable || lines[i].TaxObject == sat.TaxObjectExempt {
			order = append(order, i)
		}
	}
	for i := len(lines) - 1; i >= 0; i-- {
		if lines[i].TaxObject != sat.TaxObjectTaxable && lines[i].TaxObject != sat.TaxObjectExempt {
			order = append(order, i)
		}
	}
	return order
}

func validateAllocationInput(lines []LineInput, globalDiscount, taxRate decimal.Decimal) error {
	var errs []error
	if len(lines) == 0 {
		errs = append(errs, errors.New("sin líneas"))
	}
	if globalDiscount.IsNegative() {
		errs = append(errs, errors.New("descuento global negativo"))
	}
	if taxRate.IsNegative() {
		errs = append(errs, errors.New("tasa negativa"))
	}
	for i, l := range lines {
		if l.Gross.IsNegative() {
			errs = append(errs, fmt.Errorf("línea %d: importe negativo", i+1))
		}
		if l.ItemDiscount.IsNegative() || l.ItemDiscount.GreaterThan(l.Gross) {
			errs = append(errs, fmt.Errorf("línea %d: descuento fuera de rango", i+1))
		}
		switch l.TaxObject {
		case sat.TaxObjectTaxable, sat.TaxObjectExempt, sat.TaxObjectNotApplicable:
		default:
			errs = append(errs, fmt.Errorf("línea %d: objeto de impuesto %q desconocido", i+1, l.TaxObject))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("allocate: %w", errors.Join(append([]error{domain.ErrInvalidInput}, errs...)...))
	}
	return nil
}
