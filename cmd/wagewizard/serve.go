package main

import (
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/wagewizard/pkg/log"
	"github.com/YuminosukeSato/wagewizard/server"
)

func (c *cli) serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve predictions over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			gin.SetMode(ginMode(c.cfg.Log.Level))
			predictor, err := server.NewPredictor(c.cfg.Artifacts.Dir)
			if err != nil {
				return err
			}
			srv := server.New(predictor, server.Options{
				ArtifactsDir: c.cfg.Artifacts.Dir,
				StaticDir:    c.cfg.StaticDir(),
				Logger:       c.logger.With(log.ComponentKey, "server"),
			})
			return srv.Run(cmd.Context(), c.cfg.Server.Addr, c.cfg.Server.ShutdownTimeout)
		},
	}
	f := cmd.Flags()
	f.String("addr", "", "listen address")
	f.String("static-dir", "", "directory served under /static (default <artifacts>/plots)")
	_ = c.v.BindPFlag("server.addr", f.Lookup("addr"))
	_ = c.v.BindPFlag("server.static_dir", f.Lookup("static-dir"))
	return cmd
}

// ginMode keeps gin's route dump and debug warnings for debug logging only.
func ginMode(level string) string {
	if level == "debug" {
		return gin.DebugMode
	}
	return gin.ReleaseMode
}
