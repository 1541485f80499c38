// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"net/url"
	"strings"

	"sqlaunch/cli/internal/config"
	"sqlaunch/cli/internal/dsn"
	"sqlaunch/cli/internal/keychain"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	dbinfoProfile string
	dbinfoConfig  string
)

// dbinfoCmd shows which database a run would use, with the password masked.
var dbinfoCmd = &cobra.Command{
	Use:   "dbinfo",
	Short: "Show the database connection a run would use",
	Long: `The dbinfo command resolves the DSN the same way a run does (--dsn is not
available here: SQLAUNCH_DSN, the config file, then the OS keychain) and prints
it with the password replaced by ***.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadDotEnv(".env"); err != nil {
			return err
		}
		cfg, err := config.Load(dbinfoConfig)
		if err != nil {
			return err
		}

		raw, source := resolveDSN("", cfg.Engine.DSN, keychainLookup(dbinfoProfile))
		if source == sourceNone {
			pterm.Println("No database connection configured; runs use an in-memory sqlite database.")
			pterm.Println("To configure one, run: sqlaunch connect")
			return nil
		}
		pterm.Println("Using DSN from " + string(source))
		pterm.Println()

		info, err := dsn.ParseInfo(raw)
		if err != nil {
			pterm.Println("❌ " + err.Error())
			return err
		}

		data := pterm.TableData{
			{"Engine", info.Type.Engine()},
			{"Host", info.Host},
			{"Port", info.Port},
			{"User", info.User},
			{"Database", info.Database},
		}
		table, _ := pterm.DefaultTable.WithData(data).Srender()
		pterm.DefaultBox.
			WithTitle(pterm.NewStyle(pterm.FgCyan, pterm.Bold).Sprint("Database Connection")).
			WithTopPadding(1).WithBottomPadding(1).WithLeftPadding(1).WithRightPadding(1).
			Println(maskPassword(raw) + "\n\n" + table)
		pterm.Println()
		pterm.Println("To update this connection, run: sqlaunch connect")
		pterm.Println()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dbinfoCmd)
	dbinfoCmd.Flags().StringVar(&dbinfoProfile, "profile", keychain.DefaultProfile, "Keychain profile holding the DSN")
	dbinfoCmd.Flags().StringVar(&dbinfoConfig, "config", "", "Config file")
}

// maskPassword replaces the password in a URL-style DSN with asterisks.
func maskPassword(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.Host == "" {
		return maskPasswordSimple(dsn)
	}
	if u.User == nil {
		return dsn
	}
	if _, hasPassword := u.User.Password(); !hasPassword {
		return dsn
	}
	u.User = url.UserPassword(u.User.Username(), "***")
	return u.String()
}

// maskPasswordSimple performs string-based masking for DSNs that do not
// parse as URLs.
func maskPasswordSimple(dsn string) string {
	atIndex := strings.LastIndex(dsn, "@")
	if atIndex == -1 {
		return dsn
	}
	beforeAt := dsn[:atIndex]
	colonIndex := strings.LastIndex(beforeAt, ":")
	if colonIndex == -1 {
		return dsn
	}
	// the colon may belong to the scheme
	protocolEnd := strings.Index(dsn, "://")
	if protocolEnd != -1 && colonIndex < protocolEnd+3 {
		return dsn
	}
	return dsn[:colonIndex+1] + "***" + dsn[atIndex:]
}
