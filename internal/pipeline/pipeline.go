// Package pipeline assembles the concrete transformation graph: staging
// views over the raw tables, the intermediate yield pivot, and the three
// persisted mart tables.
package pipeline

import (
	"context"
	"fmt"
	"log"

	"macrokit-datalake/internal/dag"
	"macrokit-datalake/internal/derive"
	"macrokit-datalake/internal/domain"
	"macrokit-datalake/internal/observability"
	"macrokit-datalake/internal/staging"
	"macrokit-datalake/internal/storage"
)

// Node names. Layer prefixes follow the staging/intermediate/mart
// convention: stg_ reads raw, int_ is ephemeral, mart_ persists.
const (
	NodeStagingTreasury  = "stg_treasury_yields"
	NodeStagingEconomic  = "stg_economic_indicators"
	NodeStagingMarket    = "stg_market_data"
	NodeYieldPivot       = "int_yield_pivot"
	NodeYieldCurve       = "mart_yield_curve"
	NodeIndicatorChanges = "mart_indicator_changes"
	NodeMarketFactors    = "mart_market_factors"
)

// curveRequired is the column set the yield curve consumer requires
// non-null in the pivot. Rows missing either leg of the 2s10s spread are
// excluded from the mart.
var curveRequired = []string{"2Y", "10Y"}

// Stores groups the storage backends the graph reads and writes.
type Stores struct {
	Observations     storage.ObservationStore
	YieldCurve       storage.YieldCurveStore
	IndicatorChanges storage.IndicatorChangeStore
	MarketFactors    storage.MarketFactorStore
}

// Options configures a Pipeline.
type Options struct {
	Stores Stores

	// Series is the registry used by the staging transforms.
	Series []domain.SeriesDefinition

	// Workers bounds concurrent node execution. Defaults to 4.
	Workers int

	// Logger for run diagnostics. Defaults to the standard logger.
	Logger *log.Logger
}

// Pipeline is the assembled transformation graph with its materializer.
type Pipeline struct {
	graph  *dag.Graph
	mat    *dag.Materializer
	logger *log.Logger
}

// New validates the options, builds the graph and wires the materializer.
func New(opts Options) (*Pipeline, error) {
	if opts.Stores.Observations == nil {
		return nil, fmt.Errorf("pipeline: observation store is required")
	}
	if opts.Stores.YieldCurve == nil || opts.Stores.IndicatorChanges == nil || opts.Stores.MarketFactors == nil {
		return nil, fmt.Errorf("pipeline: mart stores are required")
	}
	if len(opts.Series) == 0 {
		return nil, fmt.Errorf("pipeline: series registry is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	graph, err := dag.NewGraph(buildNodes(opts.Stores, opts.Series, logger))
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	mat, err := dag.NewMaterializer(dag.MaterializerOptions{
		Graph:   graph,
		Workers: opts.Workers,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	return &Pipeline{graph: graph, mat: mat, logger: logger}, nil
}

// Graph exposes the assembled graph, for selection and introspection.
func (p *Pipeline) Graph() *dag.Graph {
	return p.graph
}

// Run materializes the targets and their ancestors; an empty target set
// runs the whole graph. Node outcomes are recorded as metrics.
func (p *Pipeline) Run(ctx context.Context, targets []string) (*dag.RunReport, error) {
	report, err := p.mat.Run(ctx, targets)
	if err != nil {
		return nil, err
	}
	for _, node := range report.Nodes {
		observability.RecordNodeRun(node.Name, string(node.Status), node.Duration.Seconds())
	}
	if !report.Failed() {
		observability.DefaultMetrics.LastSuccessfulTransform.SetToCurrentTime()
	}
	return report, nil
}

func buildNodes(stores Stores, series []domain.SeriesDefinition, logger *log.Logger) []*dag.Node {
	return []*dag.Node{
		stagingNode(NodeStagingTreasury, domain.TableTreasuryYields, stores.Observations, series, logger),
		stagingNode(NodeStagingEconomic, domain.TableEconomicIndicators, stores.Observations, series, logger),
		stagingNode(NodeStagingMarket, domain.TableMarketData, stores.Observations, series, logger),
		{
			Name:            NodeYieldPivot,
			DependsOn:       []string{NodeStagingTreasury},
			Materialization: dag.MaterializationEphemeral,
			Compute: func(ctx context.Context, in dag.Inputs) (dag.Dataset, error) {
				staged, err := stagedInput(in, NodeStagingTreasury)
				if err != nil {
					return nil, err
				}
				return derive.PivotYields(staged), nil
			},
		},
		{
			Name:            NodeYieldCurve,
			DependsOn:       []string{NodeYieldPivot},
			Materialization: dag.MaterializationTable,
			Indexes: []dag.IndexDecl{
				{Name: "idx_yield_curve_country_date", Columns: []string{"country", "date"}},
				{Name: "idx_yield_curve_shape", Columns: []string{"curve_shape"}},
			},
			Compute: func(ctx context.Context, in dag.Inputs) (dag.Dataset, error) {
				wide, ok := in[NodeYieldPivot].([]*derive.WideYieldRow)
				if !ok {
					return nil, fmt.Errorf("node %s: dependency %s produced %T, want []*derive.WideYieldRow", NodeYieldCurve, NodeYieldPivot, in[NodeYieldPivot])
				}
				complete := derive.RequireColumns(wide, curveRequired)
				return derive.BuildYieldCurveRows(complete, NodeYieldCurve), nil
			},
			Persist: func(ctx context.Context, data dag.Dataset) error {
				rows := data.([]*domain.YieldCurveRow)
				if err := stores.YieldCurve.ReplaceAll(ctx, rows); err != nil {
					return fmt.Errorf("persist %s: %w", NodeYieldCurve, err)
				}
				observability.RecordMartRows(NodeYieldCurve, len(rows))
				return nil
			},
		},
		{
			Name:            NodeIndicatorChanges,
			DependsOn:       []string{NodeStagingEconomic},
			Materialization: dag.MaterializationTable,
			Indexes: []dag.IndexDecl{
				{Name: "idx_indicator_changes_series_date", Columns: []string{"series_id", "observation_date"}},
				{Name: "idx_indicator_changes_indicator", Columns: []string{"indicator"}},
			},
			Compute: func(ctx context.Context, in dag.Inputs) (dag.Dataset, error) {
				staged, err := stagedInput(in, NodeStagingEconomic)
				if err != nil {
					return nil, err
				}
				return derive.LaggedChanges(staged, NodeIndicatorChanges), nil
			},
			Persist: func(ctx context.Context, data dag.Dataset) error {
				rows := data.([]*domain.IndicatorChangeRow)
				if err := stores.IndicatorChanges.ReplaceAll(ctx, rows); err != nil {
					return fmt.Errorf("persist %s: %w", NodeIndicatorChanges, err)
				}
				observability.RecordMartRows(NodeIndicatorChanges, len(rows))
				return nil
			},
		},
		{
			Name:            NodeMarketFactors,
			DependsOn:       []string{NodeStagingMarket},
			Materialization: dag.MaterializationTable,
			Indexes: []dag.IndexDecl{
				{Name: "idx_market_factors_series_date", Columns: []string{"series_id", "observation_date"}},
				{Name: "idx_market_factors_asset_class", Columns: []string{"asset_class"}},
			},
			Compute: func(ctx context.Context, in dag.Inputs) (dag.Dataset, error) {
				staged, err := stagedInput(in, NodeStagingMarket)
				if err != nil {
					return nil, err
				}
				return derive.MarketFactors(staged, NodeMarketFactors), nil
			},
			Persist: func(ctx context.Context, data dag.Dataset) error {
				rows := data.([]*domain.MarketFactorRow)
				if err := stores.MarketFactors.ReplaceAll(ctx, rows); err != nil {
					return fmt.Errorf("persist %s: %w", NodeMarketFactors, err)
				}
				observability.RecordMartRows(NodeMarketFactors, len(rows))
				return nil
			},
		},
	}
}

// stagingNode builds a view node that stages the current projection of
// one raw table.
func stagingNode(name, table string, observations storage.ObservationStore, series []domain.SeriesDefinition, logger *log.Logger) *dag.Node {
	transform := staging.NewTransform(table, series, logger)
	return &dag.Node{
		Name:            name,
		Materialization: dag.MaterializationView,
		Compute: func(ctx context.Context, _ dag.Inputs) (dag.Dataset, error) {
			current, err := observations.GetCurrentByTable(ctx, table)
			if err != nil {
				return nil, fmt.Errorf("node %s: read %s: %w", name, table, err)
			}
			staged, stats := transform.Stage(current)
			observability.RecordStagingDrops(table, stats)
			return staged, nil
		},
	}
}

func stagedInput(in dag.Inputs, dep string) ([]*domain.StagedObservation, error) {
	staged, ok := in[dep].([]*domain.StagedObservation)
	if !ok {
		return nil, fmt.Errorf("dependency %s produced %T, want []*domain.StagedObservation", dep, in[dep])
	}
	return staged, nil
}
