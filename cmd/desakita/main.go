package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"desakita/internal/config"
	"desakita/internal/db"
	"desakita/internal/domain"
	"desakita/internal/engine"
	"desakita/internal/migrate"
	"desakita/internal/server"
	"desakita/internal/storage"
)

var rootCmd = &cobra.Command{
	Use:   "desakita",
	Short: "Desakita back office",
	Long: `Desakita manages citizen administrative requests for village services.
- Layanan: the service catalog (what citizens can apply for and which documents each needs).
- Permohonan: one citizen application, tracked by a public registration number.
- Timeline: the append-only audit trail of every status change.
- Notifications: per-user alerts plus an admins broadcast on new submissions.
Run 'desakita serve' for the HTTP API, or use the subcommands for back-office chores.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("DESAKITA")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func registerCommands() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(layananCmd())
	rootCmd.AddCommand(permohonanCmd())
	rootCmd.AddCommand(initCmd())
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize the workspace database and default config",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			path := config.Path(workspace)
			if _, err := os.Stat(path); os.IsNotExist(err) {
				if err := os.WriteFile(path, []byte(config.DefaultYAML()), 0o644); err != nil {
					return err
				}
				fmt.Println("wrote", path)
			}
			fmt.Println("workspace ready:", db.Path(workspace))
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			cfg, err := config.Load(workspace)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if basePath != "" {
				cfg.Server.BasePath = basePath
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			store, err := storage.New(cfg.Uploads.Dir)
			if err != nil {
				return err
			}
			secret := os.Getenv("DESAKITA_JWT_SECRET")
			if secret == "" {
				secret = cfg.Auth.JWTSecret
			}
			if secret == "" {
				return fmt.Errorf("DESAKITA_JWT_SECRET is required for bearer auth")
			}
			e := engine.New(conn, store, cfg)
			handler, err := server.New(server.Config{
				Engine:     e,
				BasePath:   cfg.Server.BasePath,
				UploadsDir: store.Root,
				Auth: server.AuthConfig{
					JWTSecret: secret,
					DevLogin:  cfg.Auth.DevLogin || cfg.DevMode,
				},
			})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: cfg.Server.Addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Desakita API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n",
				cfg.Server.Addr, cfg.Server.BasePath, cfg.Server.BasePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (overrides config)")
	return cmd
}

func layananCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "layanan", Short: "Manage the service catalog"}
	cmd.AddCommand(layananListCmd())
	cmd.AddCommand(layananCreateCmd())
	cmd.AddCommand(layananDeleteCmd())
	return cmd
}

func layananListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List services",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListLayanan(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Nama", "Slug", "Estimasi (hari)", "Biaya"})
				for _, l := range items {
					tw.AppendRow(table.Row{l.ID, l.Nama, l.Slug, l.EstimasiHari, l.Biaya})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func layananCreateCmd() *cobra.Command {
	var l domain.Layanan
	var persyaratan []string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				l.Persyaratan = persyaratan
				created, err := e.CreateLayanan(ctx, l)
				if err != nil {
					return err
				}
				return printJSON(created)
			})
		},
	}
	cmd.Flags().StringVar(&l.Nama, "nama", "", "service name")
	cmd.Flags().StringVar(&l.Slug, "slug", "", "slug (derived from name when empty)")
	cmd.Flags().StringVar(&l.Deskripsi, "deskripsi", "", "description")
	cmd.Flags().StringVar(&l.Kategori, "kategori", "", "category")
	cmd.Flags().StringVar(&l.Biaya, "biaya", "", "fee (default Gratis)")
	cmd.Flags().IntVar(&l.EstimasiHari, "estimasi-hari", 0, "processing estimate in days")
	cmd.Flags().StringSliceVar(&persyaratan, "persyaratan", nil, "required documents")
	_ = cmd.MarkFlagRequired("nama")
	return cmd
}

func layananDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a service (refused while referenced)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid id %q", args[0])
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.DeleteLayanan(ctx, id); err != nil {
					return err
				}
				fmt.Println("deleted", id)
				return nil
			})
		},
	}
}

func permohonanCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "permohonan", Short: "Inspect requests"}
	cmd.AddCommand(permohonanListCmd())
	cmd.AddCommand(permohonanShowCmd())
	cmd.AddCommand(permohonanStatsCmd())
	return cmd
}

func permohonanListCmd() *cobra.Command {
	var f engine.ListFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				page, err := e.ListAllRequests(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(page)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"No. Registrasi", "Pemohon", "Layanan", "Status", "Diajukan"})
				for _, p := range page.Items {
					tw.AppendRow(table.Row{p.NoRegistrasi, p.Pemohon.Nama, p.LayananNama, p.Status, p.CreatedAt})
				}
				tw.Render()
				fmt.Printf("page %d/%d (total %d)\n", page.Page, page.TotalPages, page.Total)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	cmd.Flags().StringVar(&f.Search, "search", "", "search no_registrasi/nama/nik")
	cmd.Flags().IntVar(&f.Page, "page", 1, "page number")
	cmd.Flags().IntVar(&f.Limit, "limit", 0, "page size")
	return cmd
}

func permohonanShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <no_registrasi>",
		Short: "Show a request by registration number",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				check, err := e.CheckStatus(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(check)
			})
		},
	}
}

func permohonanStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Request counts per status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				stats, err := e.RequestStats(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(stats)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Status", "Jumlah"})
				for _, status := range domain.Statuses() {
					tw.AppendRow(table.Row{status, stats.ByStatus[status]})
				}
				tw.AppendFooter(table.Row{"total", stats.Total})
				tw.Render()
				return nil
			})
		},
	}
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	cfg, err := config.Load(workspace)
	if err != nil {
		return err
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	store, err := storage.New(cfg.Uploads.Dir)
	if err != nil {
		return err
	}
	e := engine.New(conn, store, cfg)
	return fn(ctx, e)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
