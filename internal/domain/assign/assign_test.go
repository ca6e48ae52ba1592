package assign_test

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/okian/openab/internal/domain/assign"
	"github.com/okian/openab/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

// fixedSource always returns the same value.
type fixedSource float64

func (f fixedSource) Float64() float64 { return float64(f) }

func threeWayExperiment() model.Experiment {
	exp, err := assign.FromLists(
		[]string{"variationA.html", "variationB.html", "variationC.html"},
		[]float64{0.34, 0.33, 0.33},
	)
	if err != nil {
		panic(err)
	}
	return exp
}

func TestAssign_StickyMarker(t *testing.T) {
	Convey("Given the three-way experiment", t, func() {
		exp := threeWayExperiment()

		Convey("When the visitor already carries variationB.html", func() {
			Convey("Then it is returned as reused for any random state", func() {
				for _, u := range []float64{0, 0.2, 0.5, 0.9999} {
					a := assign.New(assign.WithSource(fixedSource(u)))
					d, err := a.Assign("variationB.html", exp)
					So(err, ShouldBeNil)
					So(d.Variant, ShouldEqual, "variationB.html")
					So(d.Reused, ShouldBeTrue)
					So(d.NeedsPersist(), ShouldBeFalse)
					So(d.Kind(), ShouldEqual, "reused")
				}
			})
		})

		Convey("When every variant id is used as a marker", func() {
			a := assign.New(assign.WithSource(rand.New(rand.NewPCG(1, 2))))

			Convey("Then each one sticks", func() {
				for _, id := range exp.IDs() {
					for i := 0; i < 100; i++ {
						d, err := a.Assign(id, exp)
						So(err, ShouldBeNil)
						So(d.Variant, ShouldEqual, id)
						So(d.Reused, ShouldBeTrue)
					}
				}
			})
		})

		Convey("When the package-level Assign is used with a marker", func() {
			d, err := assign.Assign("variationC.html", exp)

			Convey("Then it behaves like the default assignor", func() {
				So(err, ShouldBeNil)
				So(d, ShouldResemble, model.Decision{Variant: "variationC.html", Reused: true})
			})
		})
	})
}

func TestAssign_UnknownMarker(t *testing.T) {
	Convey("Given a marker that names no current variant", t, func() {
		exp := threeWayExperiment()
		const stale = "variationZ.html"

		Convey("When the policy is verbatim", func() {
			a := assign.New(assign.WithMarkerPolicy(assign.MarkerVerbatim))
			d, err := a.Assign(stale, exp)

			Convey("Then the marker is returned unchanged", func() {
				So(err, ShouldBeNil)
				So(d.Variant, ShouldEqual, stale)
				So(d.Reused, ShouldBeTrue)
				So(a.Policy(), ShouldEqual, assign.MarkerVerbatim)
			})
		})

		Convey("When the policy is strict", func() {
			a := assign.New(
				assign.WithMarkerPolicy(assign.MarkerStrict),
				assign.WithSource(fixedSource(0.5)),
			)
			d, err := a.Assign(stale, exp)

			Convey("Then a fresh variant is drawn and flagged as a replacement", func() {
				So(err, ShouldBeNil)
				So(d.Variant, ShouldEqual, "variationB.html")
				So(d.Reused, ShouldBeFalse)
				So(d.Replaced, ShouldBeTrue)
				So(d.NeedsPersist(), ShouldBeTrue)
				So(d.Kind(), ShouldEqual, "replaced")
			})

			Convey("And a known marker still sticks", func() {
				d, err := a.Assign("variationA.html", exp)
				So(err, ShouldBeNil)
				So(d.Variant, ShouldEqual, "variationA.html")
				So(d.Reused, ShouldBeTrue)
			})
		})
	})
}

func TestAssign_FreshDraw(t *testing.T) {
	Convey("Given no marker", t, func() {
		Convey("When the experiment has a single variant", func() {
			exp, err := assign.FromLists([]string{"A"}, []float64{1.0})
			So(err, ShouldBeNil)

			Convey("Then it is always chosen as new", func() {
				for i := 0; i < 1000; i++ {
					d, err := assign.Assign("", exp)
					So(err, ShouldBeNil)
					So(d, ShouldResemble, model.Decision{Variant: "A"})
					So(d.NeedsPersist(), ShouldBeTrue)
					So(d.Kind(), ShouldEqual, "new")
				}
			})
		})

		Convey("When the random value lands on cumulative boundaries", func() {
			exp, err := assign.FromLists([]string{"A", "B", "C"}, []float64{1, 1, 2})
			So(err, ShouldBeNil)

			cases := []struct {
				u    float64
				want string
			}{
				{0, "A"},
				{0.2499, "A"},
				{0.25, "B"},
				{0.4999, "B"},
				{0.5, "C"},
				{math.Nextafter(1, 0), "C"},
			}

			Convey("Then the first variant whose cumulative weight exceeds u wins", func() {
				for _, c := range cases {
					a := assign.New(assign.WithSource(fixedSource(c.u)))
					d, err := a.Assign("", exp)
					So(err, ShouldBeNil)
					So(d.Variant, ShouldEqual, c.want)
				}
			})
		})

		Convey("When zero-weight variants surround a positive one", func() {
			exp, err := assign.FromLists([]string{"A", "B", "C"}, []float64{0, 3, 0})
			So(err, ShouldBeNil)

			Convey("Then only the positive variant is ever drawn", func() {
				for _, u := range []float64{0, 0.5, math.Nextafter(1, 0)} {
					a := assign.New(assign.WithSource(fixedSource(u)))
					d, err := a.Assign("", exp)
					So(err, ShouldBeNil)
					So(d.Variant, ShouldEqual, "B")
				}
			})
		})
	})
}

func TestAssign_Distribution(t *testing.T) {
	Convey("Given weights 0.34/0.33/0.33 and a seeded source", t, func() {
		exp := threeWayExperiment()
		a := assign.New(assign.WithSource(rand.New(rand.NewPCG(42, 1024))))
		const trials = 100_000

		counts := map[string]int{}
		for i := 0; i < trials; i++ {
			d, err := a.Assign("", exp)
			if err != nil {
				t.Fatal(err)
			}
			counts[d.Variant]++
		}

		Convey("Then every variant is selected", func() {
			So(len(counts), ShouldEqual, 3)
		})

		Convey("Then empirical frequencies are within 1% of the weights", func() {
			for id, p := range exp.Probabilities() {
				freq := float64(counts[id]) / trials
				So(freq, ShouldAlmostEqual, p, 0.01)
			}
		})
	})

	Convey("Given a zero-weight variant", t, func() {
		exp, err := assign.FromLists([]string{"A", "B", "C"}, []float64{1, 0, 1})
		So(err, ShouldBeNil)
		a := assign.New(assign.WithSource(rand.New(rand.NewPCG(7, 7))))

		Convey("Then it is never selected over many trials", func() {
			counts := map[string]int{}
			for i := 0; i < 20_000; i++ {
				d, err := a.Assign("", exp)
				So(err, ShouldBeNil)
				counts[d.Variant]++
			}
			So(counts["B"], ShouldEqual, 0)
			So(counts["A"], ShouldBeGreaterThan, 0)
			So(counts["C"], ShouldBeGreaterThan, 0)
		})
	})
}

func TestAssign_InvalidConfiguration(t *testing.T) {
	Convey("Given malformed experiment definitions", t, func() {
		Convey("When the lists are empty", func() {
			_, err := assign.FromLists([]string{}, []float64{})
			So(errors.Is(err, assign.ErrInvalidConfiguration), ShouldBeTrue)
		})

		Convey("When a weight is negative", func() {
			_, err := assign.FromLists([]string{"A", "B"}, []float64{1, -1})
			So(errors.Is(err, assign.ErrInvalidConfiguration), ShouldBeTrue)
		})

		Convey("When all weights are zero", func() {
			_, err := assign.FromLists([]string{"A"}, []float64{0})
			So(errors.Is(err, assign.ErrInvalidConfiguration), ShouldBeTrue)
		})

		Convey("When the list lengths differ", func() {
			_, err := assign.FromLists([]string{"A", "B"}, []float64{1})
			So(errors.Is(err, assign.ErrInvalidConfiguration), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "2 pages but 1 weights")
		})

		Convey("When a weight is NaN or infinite", func() {
			_, err := assign.FromLists([]string{"A"}, []float64{math.NaN()})
			So(errors.Is(err, assign.ErrInvalidConfiguration), ShouldBeTrue)
			_, err = assign.FromLists([]string{"A"}, []float64{math.Inf(1)})
			So(errors.Is(err, assign.ErrInvalidConfiguration), ShouldBeTrue)
		})

		Convey("When a variant id is empty", func() {
			_, err := assign.FromLists([]string{""}, []float64{1})
			So(errors.Is(err, assign.ErrInvalidConfiguration), ShouldBeTrue)
		})

		Convey("When Assign receives an invalid experiment directly", func() {
			d, err := assign.Assign("", model.Experiment{})

			Convey("Then it fails even without a marker", func() {
				So(errors.Is(err, assign.ErrInvalidConfiguration), ShouldBeTrue)
				So(d, ShouldResemble, model.Decision{})
			})

			Convey("And it fails with a marker too", func() {
				_, err := assign.Assign("A", model.Experiment{Variants: []model.Variant{{ID: "A", Weight: -1}}})
				So(errors.Is(err, assign.ErrInvalidConfiguration), ShouldBeTrue)
			})
		})
	})
}

func TestParseMarkerPolicy(t *testing.T) {
	Convey("Given marker policy names", t, func() {
		Convey("Then known names parse", func() {
			p, err := assign.ParseMarkerPolicy("")
			So(err, ShouldBeNil)
			So(p, ShouldEqual, assign.MarkerVerbatim)

			p, err = assign.ParseMarkerPolicy("strict")
			So(err, ShouldBeNil)
			So(p, ShouldEqual, assign.MarkerStrict)
			So(p.String(), ShouldEqual, "strict")
		})

		Convey("Then unknown names are rejected", func() {
			_, err := assign.ParseMarkerPolicy("lenient")
			So(err, ShouldNotBeNil)
		})
	})
}

func BenchmarkAssign_Fresh(b *testing.B) {
	exp := threeWayExperiment()
	a := assign.New()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, _ = a.Assign("", exp)
		}
	})
}
