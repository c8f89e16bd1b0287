package models_test

import (
	"context"
	"math"
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/childsim/internal/intake"
	"github.com/san-kum/childsim/internal/integrators"
	"github.com/san-kum/childsim/internal/models"
	"github.com/san-kum/childsim/internal/sim"
)

func runChild(c *models.Child, days float64) (*models.Trajectory, error) {
	s := sim.New(c, integrators.NewRK4())
	res, err := s.Run(context.Background(), c.InitialState(), sim.Config{
		Dt:            c.Dt(),
		Duration:      days,
		ValidateState: true,
	})
	if err != nil {
		return nil, err
	}
	return models.NewTrajectory(c, res)
}

var _ = Describe("ReferenceCurves", func() {
	boy := models.Individual{Age: 5, Sex: models.Male, Category: models.Normal, FFM: 15, FM: 3}
	girl := models.Individual{Age: 5, Sex: models.Female, Category: models.Overweight, FFM: 15, FM: 3}

	var refs *models.ReferenceCurves

	BeforeEach(func() {
		refs = models.NewReferenceCurves(models.Cohort{boy, girl})
	})

	It("returns the first row exactly at age 2", func() {
		Expect(refs.FFMAt(0, 2)).To(Equal(10.134))
		Expect(refs.FMAt(0, 2)).To(Equal(2.456))
		Expect(refs.FFMAt(1, 2)).To(Equal(9.477))
	})

	It("clamps to the last row from age 18 on", func() {
		Expect(refs.FFMAt(0, 18)).To(Equal(48.67))
		Expect(refs.FFMAt(0, 25)).To(Equal(48.67))
		Expect(refs.FMAt(0, 18)).To(Equal(10.05))
		Expect(refs.FMAt(1, 30)).To(Equal(19.14))
	})

	It("interpolates linearly between yearly rows", func() {
		Expect(refs.FFMAt(0, 2.5)).To(BeNumerically("~", (10.134+12.099)/2, 1e-12))
		Expect(refs.FMAt(1, 7.25)).To(BeNumerically("~", 6.50+0.25*(7.35-6.50), 1e-12))
	})

	It("fills vectors per individual", func() {
		out := make([]float64, 2)
		refs.FFM([]float64{2, 18}, out)
		Expect(out).To(Equal([]float64{10.134, 46.73}))
	})
})

var _ = Describe("EnergyPartition helpers", func() {
	It("computes the fat-free mass energy density", func() {
		Expect(models.FFMEnergyDensity(10)).To(BeNumerically("~", 880, 1e-12))
	})

	It("keeps the partition fraction in (0, 1]", func() {
		p, err := models.PartitionFraction(15, 3)
		Expect(err).NotTo(HaveOccurred())
		Expect(p).To(BeNumerically(">", 0))
		Expect(p).To(BeNumerically("<", 1))

		p, err = models.PartitionFraction(15, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(p).To(Equal(1.0))
	})

	It("reports a vanishing partition denominator", func() {
		c := 10.4 * models.FFMEnergyDensity(15) / 9400
		_, err := models.PartitionFraction(15, -c)
		Expect(err).To(MatchError(sim.ErrNumericDegeneracy))
	})

	It("decays physical activity towards the adult minimum", func() {
		Expect(models.Delta(0, 19)).To(Equal(19.0))
		Expect(models.Delta(12, 19)).To(BeNumerically("~", 14.5, 1e-12))
		Expect(models.Delta(40, 19)).To(BeNumerically("~", 10, 1e-3))
	})
})

var _ = Describe("Child", func() {
	constant := intake.LogisticSpec(intake.Constant(1600))

	Context("construction", func() {
		It("rejects unknown sex codes", func() {
			_, err := models.NewChild(models.Cohort{{Age: 5, Sex: 2, Category: models.Normal, FFM: 15, FM: 3}}, constant, 1)
			Expect(err).To(MatchError(sim.ErrInvalidInput))
		})

		It("rejects unknown categories", func() {
			_, err := models.NewChild(models.Cohort{{Age: 5, Sex: models.Male, Category: 5, FFM: 15, FM: 3}}, constant, 1)
			Expect(err).To(MatchError(sim.ErrInvalidInput))
		})

		It("rejects an empty cohort", func() {
			_, err := models.NewChild(models.Cohort{}, constant, 1)
			Expect(err).To(MatchError(sim.ErrInvalidInput))
		})

		It("checks physical ranges only when asked", func() {
			cohort := models.Cohort{{Age: 5, Sex: models.Male, Category: models.Normal, FFM: 15, FM: -1}}
			_, err := models.NewChild(cohort, constant, 1)
			Expect(err).NotTo(HaveOccurred())

			_, err = models.NewChild(cohort, constant, 1, models.WithCheckValues(true))
			Expect(err).To(MatchError(sim.ErrInvalidInput))
		})

		It("lays the state out as fat-free masses then fat masses", func() {
			c, err := models.NewChild(models.Cohort{
				{Age: 5, Sex: models.Male, Category: models.Normal, FFM: 15, FM: 3},
				{Age: 6, Sex: models.Female, Category: models.Obese, FFM: 17, FM: 6},
			}, constant, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.StateDim()).To(Equal(4))
			Expect(c.InitialState()).To(Equal(sim.State{15, 17, 3, 6}))
		})
	})

	Context("derivative", func() {
		It("rejects states of the wrong size", func() {
			c, err := models.NewChild(models.Cohort{{Age: 5, Sex: models.Male, Category: models.Normal, FFM: 15, FM: 3}}, constant, 1)
			Expect(err).NotTo(HaveOccurred())
			_, err = c.Derivative(sim.State{15, 3, 1}, 0)
			Expect(err).To(MatchError(sim.ErrDimensionMismatch))
		})

		It("matches the sequential result on a large cohort", func() {
			cohort := make(models.Cohort, 600)
			for i := range cohort {
				cohort[i] = models.Individual{
					Age:      3 + float64(i%10),
					Sex:      models.Sex(i % 2),
					Category: models.Category(1 + i%4),
					FFM:      15 + float64(i%7),
					FM:       3 + float64(i%5),
				}
			}
			big, err := models.NewChild(cohort, constant, 1)
			Expect(err).NotTo(HaveOccurred())
			dx, err := big.Derivative(big.InitialState(), 10)
			Expect(err).NotTo(HaveOccurred())

			for _, i := range []int{0, 299, 599} {
				one, err := models.NewChild(models.Cohort{cohort[i]}, constant, 1)
				Expect(err).NotTo(HaveOccurred())
				d, err := one.Derivative(one.InitialState(), 10)
				Expect(err).NotTo(HaveOccurred())
				Expect(dx[i]).To(Equal(d[0]))
				Expect(dx[len(cohort)+i]).To(Equal(d[1]))
			}
		})

		It("reports a full energy breakdown", func() {
			c, err := models.NewChild(models.Cohort{{Age: 5, Sex: models.Male, Category: models.Normal, FFM: 15, FM: 3}}, constant, 1)
			Expect(err).NotTo(HaveOccurred())
			b, err := c.EnergyBreakdown(c.InitialState(), 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(b.Intake).To(Equal([]float64{1600}))
			Expect(b.ReferenceIntake[0]).To(BeNumerically("~", 1496.55, 0.05))
			Expect(b.Expenditure[0]).To(BeNumerically("~", 1522.98, 0.05))
			Expect(b.GrowthImpact[0]).To(BeNumerically(">", 0))
		})
	})

	Context("365 days at a constant 1600 kcal", func() {
		var tr *models.Trajectory

		BeforeEach(func() {
			c, err := models.NewChild(models.Cohort{
				{Age: 5, Sex: models.Male, Category: models.Normal, FFM: 15, FM: 3},
			}, constant, 1)
			Expect(err).NotTo(HaveOccurred())
			tr, err = runChild(c, 365)
			Expect(err).NotTo(HaveOccurred())
		})

		It("records every step including the initial state", func() {
			Expect(tr.Steps()).To(Equal(366))
			Expect(tr.Times[0]).To(Equal(0.0))
			Expect(tr.Times[365]).To(Equal(365.0))
			Expect(tr.Age[365][0]).To(BeNumerically("~", 6, 1e-9))
			Expect(tr.ModelType).To(Equal("Children"))
			Expect(tr.Valid).To(BeTrue())
		})

		It("advances time and age monotonically", func() {
			for k := 1; k < tr.Steps(); k++ {
				Expect(tr.Times[k]).To(BeNumerically(">", tr.Times[k-1]))
				Expect(tr.Age[k][0]).To(BeNumerically(">", tr.Age[k-1][0]))
			}
		})

		It("changes body weight smoothly", func() {
			maxDelta := 0.0
			for k := 1; k < tr.Steps(); k++ {
				maxDelta = math.Max(maxDelta, math.Abs(tr.BodyWeight[k][0]-tr.BodyWeight[k-1][0]))
			}
			Expect(maxDelta).To(BeNumerically("<", 0.05))
		})

		It("gains lean and fat mass", func() {
			ffm, fm, _ := tr.Final()
			Expect(ffm[0]).To(BeNumerically("~", 17.2365, 1e-3))
			Expect(fm[0]).To(BeNumerically("~", 3.3058, 1e-3))
		})
	})

	It("returns only the initial state when days < dt", func() {
		c, err := models.NewChild(models.Cohort{{Age: 5, Sex: models.Male, Category: models.Normal, FFM: 15, FM: 3}}, constant, 1)
		Expect(err).NotTo(HaveOccurred())
		tr, err := runChild(c, 0.5)
		Expect(err).NotTo(HaveOccurred())
		Expect(tr.Steps()).To(Equal(1))
		Expect(tr.FFM[0]).To(Equal([]float64{15}))
		Expect(tr.FM[0]).To(Equal([]float64{3}))
		Expect(tr.BodyWeight[0]).To(Equal([]float64{18}))
	})

	It("separates individuals that differ only by sex", func() {
		c, err := models.NewChild(models.Cohort{
			{Age: 5, Sex: models.Male, Category: models.Normal, FFM: 15, FM: 3},
			{Age: 5, Sex: models.Female, Category: models.Normal, FFM: 15, FM: 3},
		}, constant, 1)
		Expect(err).NotTo(HaveOccurred())
		tr, err := runChild(c, 365)
		Expect(err).NotTo(HaveOccurred())
		ffm, fm, _ := tr.Final()
		Expect(ffm[0]).NotTo(Equal(ffm[1]))
		Expect(fm[0]).NotTo(Equal(fm[1]))
	})

	It("fails when the intake table is too short", func() {
		matrix := [][]float64{{1600, 1600, 1600}}
		c, err := models.NewChild(models.Cohort{{Age: 5, Sex: models.Male, Category: models.Normal, FFM: 15, FM: 3}},
			intake.TabulatedSpec(matrix), 1)
		Expect(err).NotTo(HaveOccurred())
		_, err = runChild(c, 5)
		Expect(err).To(MatchError(sim.ErrIndexOutOfRange))
	})

	It("agrees between constant tabulated and logistic intake", func() {
		cohort := models.Cohort{{Age: 8, Sex: models.Female, Category: models.Overweight, FFM: 22, FM: 8}}
		row := make([]float64, 31)
		for k := range row {
			row[k] = 1800
		}
		tab, err := models.NewChild(cohort, intake.TabulatedSpec([][]float64{row}), 1)
		Expect(err).NotTo(HaveOccurred())
		log, err := models.NewChild(cohort, intake.LogisticSpec(intake.Constant(1800)), 1)
		Expect(err).NotTo(HaveOccurred())

		a, err := runChild(tab, 30)
		Expect(err).NotTo(HaveOccurred())
		b, err := runChild(log, 30)
		Expect(err).NotTo(HaveOccurred())
		Expect(a.FFM[30][0]).To(BeNumerically("~", b.FFM[30][0], 1e-12))
		Expect(a.FM[30][0]).To(BeNumerically("~", b.FM[30][0], 1e-12))
	})
})

var _ = Describe("Randomized cohorts", func() {
	It("keeps masses non-negative and body weight equal to their sum over ten years", func() {
		rng := rand.New(rand.NewSource(7))
		const (
			n    = 24
			dt   = 5.0
			days = 3650.0
		)

		cohort := make(models.Cohort, n)
		for i := range cohort {
			cohort[i] = models.Individual{
				Age:      2 + 10*rng.Float64(),
				Sex:      models.Sex(rng.Intn(2)),
				Category: models.Category(1 + rng.Intn(4)),
			}
		}
		refs := models.NewReferenceCurves(cohort)
		for i := range cohort {
			age := cohort[i].Age
			cohort[i].FFM = refs.FFMAt(i, age) * (0.95 + 0.1*rng.Float64())
			cohort[i].FM = refs.FMAt(i, age) * (0.95 + 0.1*rng.Float64())
		}

		// Intake follows each child's reference intake, scaled up by at most 10%.
		probe, err := models.NewChild(cohort, intake.LogisticSpec(intake.Constant(1)), dt)
		Expect(err).NotTo(HaveOccurred())
		steps := sim.Steps(days, dt)
		matrix := make([][]float64, n)
		factor := make([]float64, n)
		for i := range matrix {
			matrix[i] = make([]float64, steps+1)
			factor[i] = 1 + 0.1*rng.Float64()
		}
		ref := make([]float64, n)
		for k := 0; k <= steps; k++ {
			Expect(probe.ReferenceIntake(float64(k)*dt, ref)).To(Succeed())
			for i := range matrix {
				matrix[i][k] = factor[i] * ref[i]
			}
		}

		c, err := models.NewChild(cohort, intake.TabulatedSpec(matrix), dt, models.WithCheckValues(true))
		Expect(err).NotTo(HaveOccurred())
		tr, err := runChild(c, days)
		Expect(err).NotTo(HaveOccurred())
		Expect(tr.Valid).To(BeTrue())
		Expect(tr.CorrectValues).To(BeTrue())

		for k := 0; k < tr.Steps(); k++ {
			for i := 0; i < n; i++ {
				Expect(tr.FFM[k][i]).To(BeNumerically(">=", 0))
				Expect(tr.FM[k][i]).To(BeNumerically(">=", 0))
				Expect(tr.BodyWeight[k][i]).To(BeNumerically("~", tr.FFM[k][i]+tr.FM[k][i], 1e-9))
			}
		}
	})
})
