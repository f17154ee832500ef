// Command znflow-demo builds a handful of small task graphs and resolves
// them through znflow, to exercise the library end to end the way a demo
// in a teaching repo typically does: one subcommand per interesting
// graph shape. A --parallel flag swaps the deployment variant between
// sequential and worker-pool for the subcommands that run a deployment
// (diamond, external, partial); combine always resolves through a
// sequential deployment, and groups runs none.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ordinate-sh/znflow"
	"github.com/ordinate-sh/znflow/deploy"
	"github.com/ordinate-sh/znflow/trace"
	"github.com/ordinate-sh/znflow/workerpool"
)

var (
	parallel    bool
	concurrency int
	logLevel    string
)

func main() {
	root := &cobra.Command{
		Use:   "znflow-demo",
		Short: "Run sample znflow task graphs",
	}
	root.PersistentFlags().BoolVar(&parallel, "parallel", false, "use the worker-pool deployment instead of sequential")
	root.PersistentFlags().IntVar(&concurrency, "concurrency", 4, "worker-pool concurrency (with --parallel)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "logrus level: debug, info, warn, error")

	root.AddCommand(diamondCmd(), combineCmd(), externalCmd(), groupsCmd(), partialCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger() *logrus.Logger {
	logger := logrus.New()
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}

func newDeployment() deploy.Deployment {
	sink := trace.NewLogrusSink(newLogger())
	if parallel {
		return deploy.NewWorkerPoolDeployment(workerpool.New(concurrency), true).WithSink(sink)
	}
	return deploy.NewSequentialDeployment(true).WithSink(sink)
}

// diamondCmd builds A -> {B, C} -> D and prints D's resolved sum.
func diamondCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diamond",
		Short: "Run a diamond-shaped graph: A feeds two branches that join at D",
		RunE: func(cmd *cobra.Command, args []string) error {
			g := znflow.NewGraph()
			var a, d *Sum
			var b *AddOne
			var c *Double

			err := znflow.WithScope(g, func() error {
				a = znflow.NewTask(func() *Sum { return &Sum{Left: 2, Right: 3} })
				b = znflow.NewTask(func() *AddOne { return &AddOne{Value: znflow.Ref(a, "Result")} })
				c = znflow.NewTask(func() *Double { return &Double{Value: znflow.Ref(a, "Result")} })
				d = znflow.NewTask(func() *Sum {
					return &Sum{Left: znflow.Ref(b, "Result"), Right: znflow.Ref(c, "Result")}
				})
				return nil
			})
			if err != nil {
				return err
			}

			if _, err := newDeployment().Run(g); err != nil {
				return err
			}
			fmt.Printf("A.Result=%d B.Result=%d C.Result=%d D.Result=%d\n", a.Result, b.Result, c.Result, d.Result)
			return nil
		},
	}
}

// combineCmd flattens two list-producing tasks into one combined reference.
func combineCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "combine",
		Short: "Combine two list-producing tasks into a single reference",
		RunE: func(cmd *cobra.Command, args []string) error {
			g := znflow.NewGraph()
			var combined *znflow.CombinedConnection

			err := znflow.WithScope(g, func() error {
				p1 := znflow.NewTask(func() *ListProducer { return &ListProducer{Seed: 1} })
				p2 := znflow.NewTask(func() *ListProducer { return &ListProducer{Seed: 10} })

				r1 := znflow.Ref(p1, "Result")
				r2 := znflow.Ref(p2, "Result")

				var err error
				combined, err = znflow.Combine([]any{r1, r2})
				return err
			})
			if err != nil {
				return err
			}

			value, err := deploy.ResultOf(g, combined)
			if err != nil {
				return err
			}
			fmt.Printf("combined=%v\n", value)
			return nil
		},
	}
}

// externalCmd reads from a task marked external: it contributes data but
// is never itself executed by the deployment.
func externalCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "external",
		Short: "Read from an external, read-only source task",
		RunE: func(cmd *cobra.Command, args []string) error {
			g := znflow.NewGraph()
			var source *Source
			var consumer *AddOne

			err := znflow.WithScope(g, func() error {
				source = &Source{Values: []int{41}}
				source.MarkExternal()
				znflow.NewTask(func() *Source { return source })

				first, err := znflow.Index(znflow.Ref(source, "Values").(znflow.Reference), 0)
				if err != nil {
					return err
				}
				consumer = znflow.NewTask(func() *AddOne { return &AddOne{Value: first} })
				return nil
			})
			if err != nil {
				return err
			}

			if _, err := newDeployment().Run(g); err != nil {
				return err
			}
			fmt.Printf("Source.Values=%v consumer.Result=%d (source never ran)\n", source.Values, consumer.Result)
			return nil
		},
	}
}

// groupsCmd tags a subset of tasks with a named group.
func groupsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "groups",
		Short: "Build a graph with a named group of tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			g := znflow.NewGraph()

			err := znflow.WithScope(g, func() error {
				return g.WithGroup(func() error {
					znflow.NewTask(func() *Sum { return &Sum{Left: 1, Right: 1} })
					znflow.NewTask(func() *Sum { return &Sum{Left: 2, Right: 2} })
					return nil
				}, "warmup")
			})
			if err != nil {
				return err
			}

			grp, _ := g.Group("warmup")
			fmt.Printf("group %q has %d members\n", grp.Name(), len(grp.Members()))
			return nil
		},
	}
}

// partialCmd runs only one branch of a diamond, leaving the other
// untouched.
func partialCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "partial",
		Short: "Run only one branch of a diamond graph (target-restricted execution)",
		RunE: func(cmd *cobra.Command, args []string) error {
			g := znflow.NewGraph()
			var a *Sum
			var b *AddOne
			var c *Double

			err := znflow.WithScope(g, func() error {
				a = znflow.NewTask(func() *Sum { return &Sum{Left: 2, Right: 3} })
				b = znflow.NewTask(func() *AddOne { return &AddOne{Value: znflow.Ref(a, "Result")} })
				c = znflow.NewTask(func() *Double { return &Double{Value: znflow.Ref(a, "Result")} })
				return nil
			})
			if err != nil {
				return err
			}

			if _, err := newDeployment().RunTargets(g, b); err != nil {
				return err
			}
			fmt.Printf("A.Result=%d B.Result=%d (C untouched, Result=%d)\n", a.Result, b.Result, c.Result)
			return nil
		},
	}
}
