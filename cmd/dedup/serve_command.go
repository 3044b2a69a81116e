package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"corpus-dedup/internal/handler"
	"corpus-dedup/pkg/log"
	"corpus-dedup/pkg/token"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the cluster review HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, appOptions{sideEffects: true}, func(c context.Context, a *app) error {
				if a.cfg.JWT.Secret == "" {
					return errors.New("jwt.secret must be set to serve the review API")
				}
				gin.SetMode(a.cfg.Server.Mode)
				jwtManager := token.NewJWTManager(a.cfg.JWT.Secret, a.cfg.JWT.TokenExpireHours)
				router := handler.NewRouter(handler.NewClusterHandler(a.reviewService(), newJobLockedMerger(a.cfg.LockDir, a.mergeService())), jwtManager)

				srv := &http.Server{
					Addr:    fmt.Sprintf(":%s", a.cfg.Server.Port),
					Handler: router,
				}
				errCh := make(chan error, 1)
				go func() {
					log.Infof("服务启动于 %s", srv.Addr)
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						errCh <- err
					}
					close(errCh)
				}()

				select {
				case err, ok := <-errCh:
					if ok {
						return fmt.Errorf("HTTP 服务监听失败: %w", err)
					}
					return nil
				case <-c.Done():
				}
				log.Info("接收到停机信号，正在关闭服务...")

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					return fmt.Errorf("HTTP 服务器关闭失败: %w", err)
				}
				log.Info("服务已优雅关闭")
				return nil
			})
		},
	}
}
