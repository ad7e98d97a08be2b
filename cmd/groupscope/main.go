package main

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/groupscope/groupscope/internal/analytics"
	"github.com/groupscope/groupscope/internal/clock"
	"github.com/groupscope/groupscope/internal/config"
	"github.com/groupscope/groupscope/internal/observability"
	"github.com/groupscope/groupscope/internal/pipeline"
	"github.com/groupscope/groupscope/internal/portal"
	"github.com/groupscope/groupscope/internal/publisher"
	"github.com/groupscope/groupscope/internal/runledger"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Full analytics run: Group_Snapshot, Group_Content, and Group_Members.
func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		clock.Module,
		fx.Provide(RegisterSnowflake),

		portal.Module,
		runledger.Module,
		analytics.Module,
		publisher.Module,
		pipeline.Module,

		fx.Supply(pipeline.Options{
			IncludeContent: true,
			IncludeMembers: true,
		}),
		fx.Invoke(StartRun),
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}

// StartRun executes one pipeline pass and shuts the app down when it
// completes.
func StartRun(lc fx.Lifecycle, shutdowner fx.Shutdowner, p *pipeline.Pipeline, log *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := p.Run(context.Background()); err != nil {
					log.Error("run failed", zap.Error(err))
					_ = shutdowner.Shutdown(fx.ExitCode(1))
					return
				}
				_ = shutdowner.Shutdown()
			}()
			return nil
		},
	})
}
