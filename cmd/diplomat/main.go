// Command diplomat drives the faction diplomacy engine from the terminal.
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/talgya/statecraft/internal/api"
	"github.com/talgya/statecraft/internal/config"
	"github.com/talgya/statecraft/internal/diplomacy"
	"github.com/talgya/statecraft/internal/entropy"
	"github.com/talgya/statecraft/internal/faction"
	"github.com/talgya/statecraft/internal/persistence"
	"github.com/talgya/statecraft/internal/trust"
)

var rootCmd = &cobra.Command{
	Use:   "diplomat",
	Short: "Faction diplomacy CLI",
	Long: `Diplomat evaluates faction compatibility, betrayal risk, and alliance
opportunities, runs multi-party negotiation sessions, and tracks pairwise
trust as interactions accumulate. Factions are loaded from a YAML roster;
state persists in a SQLite workspace.`,
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("DIPLOMAT")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("roster", "r", "factions.yaml", "faction roster file")
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory for the database")
	rootCmd.PersistentFlags().String("calibration", "", "calibration overrides file (optional)")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().Int64("seed", 0, "deterministic entropy seed (0 = system entropy)")
	_ = viper.BindPFlag("roster", rootCmd.PersistentFlags().Lookup("roster"))
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("calibration", rootCmd.PersistentFlags().Lookup("calibration"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("seed", rootCmd.PersistentFlags().Lookup("seed"))
}

func registerCommands() {
	rootCmd.AddCommand(evaluateCmd())
	rootCmd.AddCommand(opportunityCmd())
	rootCmd.AddCommand(betrayalCmd())
	rootCmd.AddCommand(negotiateCmd())
	rootCmd.AddCommand(recordCmd())
	rootCmd.AddCommand(summaryCmd())
	rootCmd.AddCommand(networkCmd())
	rootCmd.AddCommand(serveCmd())
}

// engines bundles everything a command can need, wired over one store.
type engines struct {
	Provider    *faction.StaticProvider
	Cal         *config.Calibration
	Compat      *diplomacy.CompatibilityEngine
	Betrayal    *diplomacy.BetrayalRiskEngine
	Formation   *diplomacy.FormationEngine
	Negotiation *diplomacy.NegotiationEngine
	Ledger      *trust.Ledger
	Analyzer    *trust.Analyzer
	Network     *trust.NetworkAnalyzer
	DB          *persistence.Store
}

// withEngines loads the roster and calibration, opens the workspace
// database, wires every engine, restores persisted sessions, and hands
// control to fn. Sessions are flushed back on the way out.
func withEngines(fn func(e *engines) error) error {
	provider, err := faction.LoadRoster(viper.GetString("roster"))
	if err != nil {
		return fmt.Errorf("load roster: %w", err)
	}
	cal, err := config.LoadOptional(viper.GetString("calibration"))
	if err != nil {
		return fmt.Errorf("load calibration: %w", err)
	}

	workspace := viper.GetString("workspace")
	dataDir := filepath.Join(workspace, "data")
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return err
	}
	db, err := persistence.Open(filepath.Join(dataDir, "diplomacy.db"))
	if err != nil {
		return err
	}
	defer db.Close()

	src := entropy.Crypto()
	if seed := viper.GetInt64("seed"); seed != 0 {
		src = entropy.Seeded(seed)
	}

	compat := diplomacy.NewCompatibilityEngine(provider, src, cal)
	analyzer := trust.NewAnalyzer(db, cal)
	analyzer.Status = provider
	e := &engines{
		Provider:    provider,
		Cal:         cal,
		Compat:      compat,
		Betrayal:    diplomacy.NewBetrayalRiskEngine(provider, cal),
		Formation:   diplomacy.NewFormationEngine(compat, cal),
		Negotiation: diplomacy.NewNegotiationEngine(provider, cal),
		Ledger: trust.NewLedger(db, func(a, b faction.ID) (float64, error) {
			assessment, err := compat.Evaluate(a, b)
			if err != nil {
				return 0, err
			}
			return assessment.Compatibility, nil
		}, cal),
		Analyzer: analyzer,
		Network:  trust.NewNetworkAnalyzer(db, provider, cal),
		DB:       db,
	}

	sessions, err := db.Sessions()
	if err != nil {
		return fmt.Errorf("restore sessions: %w", err)
	}
	e.Negotiation.Restore(sessions)

	if err := fn(e); err != nil {
		return err
	}
	return db.SaveSessions(e.Negotiation.Sessions())
}

func evaluateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "evaluate <faction-a> <faction-b>",
		Short: "Assess compatibility and threat level between two factions",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngines(func(e *engines) error {
				a, err := e.Compat.Evaluate(faction.ID(args[0]), faction.ID(args[1]))
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
}

func opportunityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "opportunity <faction-a> <faction-b>",
		Short: "Evaluate an alliance opportunity between two factions",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngines(func(e *engines) error {
				opp, err := e.Formation.EvaluateOpportunity(faction.ID(args[0]), faction.ID(args[1]))
				if err != nil {
					return err
				}
				return printJSONOrTable(opp)
			})
		},
	}
}

func betrayalCmd() *cobra.Command {
	var allies []string
	var pressure, shortage, opportunity bool
	var defeats int
	cmd := &cobra.Command{
		Use:   "betrayal <faction>",
		Short: "Assess a faction's betrayal risk toward its allies",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngines(func(e *engines) error {
				allyIDs := make([]faction.ID, 0, len(allies))
				for _, a := range allies {
					allyIDs = append(allyIDs, faction.ID(a))
				}
				assessment, err := e.Betrayal.Assess(faction.ID(args[0]), allyIDs, diplomacy.ExternalFactors{
					UnderPressure:     pressure,
					RecentDefeats:     defeats,
					ResourceShortage:  shortage,
					BetterOpportunity: opportunity,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(assessment)
			})
		},
	}
	cmd.Flags().StringArrayVar(&allies, "ally", []string{}, "allied faction id (repeatable)")
	cmd.Flags().BoolVar(&pressure, "pressure", false, "faction is under military pressure")
	cmd.Flags().IntVar(&defeats, "defeats", 0, "recent military defeats")
	cmd.Flags().BoolVar(&shortage, "shortage", false, "faction faces a resource shortage")
	cmd.Flags().BoolVar(&opportunity, "opportunity", false, "a better alliance is available")
	return cmd
}

func negotiateCmd() *cobra.Command {
	neg := &cobra.Command{Use: "negotiate", Short: "Run multi-party negotiation sessions"}
	neg.AddCommand(negotiateStartCmd())
	neg.AddCommand(negotiateAdvanceCmd())
	neg.AddCommand(negotiateStatusCmd())
	neg.AddCommand(negotiateListCmd())
	return neg
}

// termFlags registers the overridable term flags and returns a builder that
// assembles a TermOverrides from whichever flags were actually set.
func termFlags(cmd *cobra.Command) func() *diplomacy.TermOverrides {
	var durationDays, troops int
	var autoRenew, mutualDefense bool
	var tariff float64
	cmd.Flags().IntVar(&durationDays, "duration-days", 0, "alliance duration in days")
	cmd.Flags().IntVar(&troops, "troops", 0, "committed troop count")
	cmd.Flags().BoolVar(&autoRenew, "auto-renew", false, "renew automatically at expiry")
	cmd.Flags().BoolVar(&mutualDefense, "mutual-defense", false, "include a mutual defense clause")
	cmd.Flags().Float64Var(&tariff, "tariff-reduction", 0, "tariff reduction fraction [0,1]")

	return func() *diplomacy.TermOverrides {
		o := &diplomacy.TermOverrides{}
		set := false
		if cmd.Flags().Changed("duration-days") {
			o.DurationDays = &durationDays
			set = true
		}
		if cmd.Flags().Changed("troops") {
			o.TroopCommitment = &troops
			set = true
		}
		if cmd.Flags().Changed("auto-renew") {
			o.AutoRenew = &autoRenew
			set = true
		}
		if cmd.Flags().Changed("mutual-defense") {
			o.MutualDefense = &mutualDefense
			set = true
		}
		if cmd.Flags().Changed("tariff-reduction") {
			o.TariffReduction = &tariff
			set = true
		}
		if !set {
			return nil
		}
		return o
	}
}

func negotiateStartCmd() *cobra.Command {
	var allianceType string
	cmd := &cobra.Command{
		Use:   "start <initiator> <target>...",
		Short: "Open a negotiation session",
		Args:  cobra.MinimumNArgs(2),
	}
	overrides := termFlags(cmd)
	cmd.Flags().StringVarP(&allianceType, "type", "t", "diplomatic", "alliance type (military|economic|diplomatic|full)")
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return withEngines(func(e *engines) error {
			targets := make([]faction.ID, 0, len(args)-1)
			for _, t := range args[1:] {
				targets = append(targets, faction.ID(t))
			}
			s, err := e.Negotiation.Initiate(faction.ID(args[0]), targets, diplomacy.AllianceType(allianceType), overrides())
			if err != nil {
				return err
			}
			slog.Info("negotiation opened", "session", s.ID, "phase", s.Phase)
			return printJSONOrTable(s)
		})
	}
	return cmd
}

func negotiateAdvanceCmd() *cobra.Command {
	var note string
	cmd := &cobra.Command{
		Use:   "advance <session> <actor> <action>",
		Short: "Apply one participant action to a session",
		Long:  "Actions: accept, counter, request_details, conditional_interest, reject.\nA counter must carry at least one term flag.",
		Args:  cobra.ExactArgs(3),
	}
	overrides := termFlags(cmd)
	cmd.Flags().StringVar(&note, "note", "", "note to attach to the event log")
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return withEngines(func(e *engines) error {
			result, err := e.Negotiation.Advance(args[0], faction.ID(args[1]), diplomacy.Action(args[2]), diplomacy.ActionParams{
				Terms: overrides(),
				Note:  note,
			})
			if err != nil {
				return err
			}
			return printJSONOrTable(result)
		})
	}
	return cmd
}

func negotiateStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <session>",
		Short: "Show a session snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngines(func(e *engines) error {
				s, err := e.Negotiation.Status(args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
}

func negotiateListCmd() *cobra.Command {
	var forFaction string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List active sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngines(func(e *engines) error {
				summaries := e.Negotiation.ListActive(faction.ID(forFaction))
				if viper.GetBool("json") {
					return printJSON(summaries)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Type", "Phase", "Initiator", "Participants", "Rounds", "Success", "Deadline"})
				for _, s := range summaries {
					tw.AppendRow(table.Row{
						s.ID, s.Type, s.Phase, s.Initiator,
						joinIDs(s.Participants),
						s.RoundsCompleted,
						fmt.Sprintf("%.2f", s.SuccessProbability),
						s.Deadline.Format("2006-01-02"),
					})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&forFaction, "faction", "", "only sessions involving this faction")
	return cmd
}

func recordCmd() *cobra.Command {
	var trustImpact, reputationImpact, severity float64
	var description string
	cmd := &cobra.Command{
		Use:   "record <kind> <initiator> <target>",
		Short: "Record a diplomatic interaction and evolve pair trust",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngines(func(e *engines) error {
				ev, err := e.Ledger.RecordInteraction(trust.Interaction{
					Kind:             trust.Kind(args[0]),
					Initiator:        faction.ID(args[1]),
					Target:           faction.ID(args[2]),
					Description:      description,
					TrustImpact:      trustImpact,
					ReputationImpact: reputationImpact,
					Severity:         severity,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(ev)
			})
		},
	}
	cmd.Flags().Float64Var(&trustImpact, "trust-impact", 0, "trust impact [-1,1]")
	cmd.Flags().Float64Var(&reputationImpact, "reputation-impact", 0, "reputation impact [-1,1]")
	cmd.Flags().Float64Var(&severity, "severity", 0.5, "severity [0,1]")
	cmd.Flags().StringVar(&description, "description", "", "free-form description")
	return cmd
}

func summaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary <faction-a> <faction-b>",
		Short: "Analyze one pair's relationship trajectory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngines(func(e *engines) error {
				s, err := e.Analyzer.Summarize(faction.ID(args[0]), faction.ID(args[1]))
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
}

func networkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "network",
		Short: "Analyze the whole trust network",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngines(func(e *engines) error {
				report, err := e.Network.Analyze()
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(report)
				}

				fmt.Printf("factions: %d  tracked pairs: %d  stability: %.2f  conflict risk: %.2f\n",
					len(report.Factions), report.PairsTracked, report.StabilityScore, report.ConflictRisk)

				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Faction", "Avg Trust", "Pairs"})
				for _, inf := range report.Influence {
					tw.AppendRow(table.Row{inf.Faction, fmt.Sprintf("%.3f", inf.AvgTrust), inf.Pairs})
				}
				tw.Render()

				for _, c := range report.Clusters {
					fmt.Printf("cluster: %s + %s (%.2f)\n", c.Members[0], c.Members[1], c.MeanTrust)
				}
				for _, h := range report.Hotspots {
					fmt.Printf("hotspot: %s vs %s (%.2f, %s)\n", h.FactionA, h.FactionB, h.MeanTrust, h.Severity)
				}
				return nil
			})
		},
	}
}

func serveCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngines(func(e *engines) error {
				srv := &api.Server{
					Provider:    e.Provider,
					Compat:      e.Compat,
					Betrayal:    e.Betrayal,
					Formation:   e.Formation,
					Negotiation: e.Negotiation,
					Ledger:      e.Ledger,
					Analyzer:    e.Analyzer,
					Network:     e.Network,
					DB:          e.DB,
					Port:        port,
					AdminKey:    os.Getenv("DIPLOMAT_ADMIN_KEY"),
				}
				srv.Start()

				sigCh := make(chan os.Signal, 1)
				signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
				sig := <-sigCh
				slog.Info("shutting down", "signal", sig.String())
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "listen port")
	return cmd
}

func joinIDs(ids []faction.ID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}
	return strings.Join(parts, ",")
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
