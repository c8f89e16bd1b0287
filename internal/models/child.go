package models

import (
	"fmt"
	"sync"

	"github.com/san-kum/childsim/internal/intake"
	"github.com/san-kum/childsim/internal/params"
	"github.com/san-kum/childsim/internal/sim"
)

// parallelChunk is the smallest number of individuals handed to one goroutine.
const parallelChunk = 256

// Child is the Hall et al. childhood weight model for a cohort. The state
// vector is [FFM_0..FFM_{N-1}, FM_0..FM_{N-1}] in kg and time is elapsed
// days since the start of the simulation.
type Child struct {
	cohort      Cohort
	ages0       []float64
	params      params.SexParams
	refs        *ReferenceCurves
	kin         *GrowthKinetics
	energy      *EnergyPartition
	intake      intake.Provider
	dt          float64
	checkValues bool
	pool        *sim.StatePool
}

type Option func(*Child)

// WithCheckValues validates the physical ranges of every individual
// (age, masses) at construction in addition to the enumerated codes.
func WithCheckValues(check bool) Option {
	return func(c *Child) { c.checkValues = check }
}

func NewChild(cohort Cohort, spec intake.Spec, dt float64, opts ...Option) (*Child, error) {
	c := &Child{dt: dt}
	for _, opt := range opts {
		opt(c)
	}

	if err := cohort.validateCodes(); err != nil {
		return nil, err
	}
	if c.checkValues {
		if err := cohort.Validate(); err != nil {
			return nil, err
		}
	}

	provider, err := intake.New(spec, len(cohort), dt)
	if err != nil {
		return nil, err
	}

	c.cohort = cohort
	c.ages0 = cohort.Ages()
	c.params = params.NewSexParams(cohort.SexWeights())
	c.refs = NewReferenceCurves(cohort)
	c.kin = NewGrowthKinetics(c.params)
	c.energy = NewEnergyPartition(c.params, c.refs, c.kin)
	c.intake = provider
	c.pool = sim.NewStatePool(len(cohort))
	return c, nil
}

func (c *Child) StateDim() int           { return 2 * len(c.cohort) }
func (c *Child) Len() int                { return len(c.cohort) }
func (c *Child) Cohort() Cohort          { return c.cohort }
func (c *Child) Dt() float64             { return c.dt }
func (c *Child) CheckValues() bool       { return c.checkValues }
func (c *Child) Intake() intake.Provider { return c.intake }
func (c *Child) InitialState() sim.State { return c.cohort.InitialState() }

func (c *Child) agesAt(t float64, out []float64) {
	for i, a := range c.ages0 {
		out[i] = a + t/params.DaysPerYear
	}
}

// Derivative returns dFFM/dt and dFM/dt in kg/day.
func (c *Child) Derivative(x sim.State, t float64) (sim.State, error) {
	n := len(c.cohort)
	if len(x) != 2*n {
		return nil, fmt.Errorf("%w: state has %d entries, expected %d", sim.ErrDimensionMismatch, len(x), 2*n)
	}

	ages := c.pool.Get()
	defer c.pool.Put(ages)
	intakes := c.pool.Get()
	defer c.pool.Put(intakes)

	c.agesAt(t, ages)
	if err := c.intake.Intake(ages, t, intakes); err != nil {
		return nil, err
	}

	dx := make(sim.State, 2*n)

	var (
		mu       sync.Mutex
		firstErr error
	)
	sim.ParallelFor(n, parallelChunk, func(start, end int) {
		for i := start; i < end; i++ {
			dffm, dfm, err := c.massDerivative(i, ages[i], x[i], x[n+i], intakes[i])
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("individual %d: %w", i, err)
				}
				mu.Unlock()
				return
			}
			dx[i] = dffm
			dx[n+i] = dfm
		}
	})
	if firstErr != nil {
		return nil, firstErr
	}
	return dx, nil
}

func (c *Child) massDerivative(i int, age, ffm, fm, in float64) (float64, float64, error) {
	rhoFFM := FFMEnergyDensity(ffm)
	p, err := PartitionFraction(ffm, fm)
	if err != nil {
		return 0, 0, err
	}
	growth := c.kin.GrowthDynamicAt(i, age)
	expend, err := c.energy.ExpenditureAt(i, age, ffm, fm, in)
	if err != nil {
		return 0, 0, err
	}
	if rhoFFM == 0 {
		return 0, 0, fmt.Errorf("%w: fat-free mass energy density is zero", sim.ErrNumericDegeneracy)
	}

	imbalance := in - expend
	dffm := (p*imbalance + growth) / rhoFFM
	dfm := ((1-p)*imbalance - growth) / params.RhoFM
	return dffm, dfm, nil
}

// Breakdown is the energy budget of every individual at one instant.
type Breakdown struct {
	Age                 []float64 `json:"age"`
	Intake              []float64 `json:"intake"`
	ReferenceIntake     []float64 `json:"reference_intake"`
	Expenditure         []float64 `json:"expenditure"`
	Partition           []float64 `json:"partition"`
	Delta               []float64 `json:"delta"`
	GrowthDynamic       []float64 `json:"growth_dynamic"`
	GrowthImpact        []float64 `json:"growth_impact"`
	EnergyBalanceImpact []float64 `json:"energy_balance_impact"`
}

// EnergyBreakdown evaluates every sub-model of the energy balance at elapsed
// time t for state x.
func (c *Child) EnergyBreakdown(x sim.State, t float64) (*Breakdown, error) {
	n := len(c.cohort)
	if len(x) != 2*n {
		return nil, fmt.Errorf("%w: state has %d entries, expected %d", sim.ErrDimensionMismatch, len(x), 2*n)
	}
	b := &Breakdown{
		Age:                 make([]float64, n),
		Intake:              make([]float64, n),
		ReferenceIntake:     make([]float64, n),
		Expenditure:         make([]float64, n),
		Partition:           make([]float64, n),
		Delta:               make([]float64, n),
		GrowthDynamic:       make([]float64, n),
		GrowthImpact:        make([]float64, n),
		EnergyBalanceImpact: make([]float64, n),
	}

	c.agesAt(t, b.Age)
	if err := c.intake.Intake(b.Age, t, b.Intake); err != nil {
		return nil, err
	}
	if err := c.energy.ReferenceIntake(b.Age, b.ReferenceIntake); err != nil {
		return nil, err
	}
	if err := c.energy.Expenditure(b.Age, x[:n], x[n:], b.Intake, b.Expenditure); err != nil {
		return nil, err
	}
	c.kin.GrowthDynamic(b.Age, b.GrowthDynamic)
	c.kin.GrowthImpact(b.Age, b.GrowthImpact)
	c.kin.EnergyBalanceImpact(b.Age, b.EnergyBalanceImpact)
	for i := 0; i < n; i++ {
		p, err := PartitionFraction(x[i], x[n+i])
		if err != nil {
			return nil, fmt.Errorf("individual %d: %w", i, err)
		}
		b.Partition[i] = p
		b.Delta[i] = Delta(b.Age[i], c.params.DeltaMax[i])
	}
	return b, nil
}

// ReferenceIntake fills out with the intake that would keep every individual
// on its reference curve at elapsed time t.
func (c *Child) ReferenceIntake(t float64, out []float64) error {
	ages := c.pool.Get()
	defer c.pool.Put(ages)
	c.agesAt(t, ages)
	return c.energy.ReferenceIntake(ages, out)
}
