package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"archivist/pkg/auth"
	"archivist/pkg/config"
	"archivist/pkg/fanbox"
	"archivist/pkg/logger"
	"archivist/pkg/patreon"
	"archivist/pkg/ui"
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage platform sessions",
	Long: `Manage stored session cookies securely.

Sessions are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables FANBOXSESSID and PATREON_SESSION (read only)

Never share your session cookies or config files!`,
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store a session cookie securely",
	Example: `  # Store the default fanbox session
  archivist auth login

  # Store a second patreon account
  archivist auth login --platform patreon --account alt`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove a stored session",
	Args:  cobra.NoArgs,
	RunE:  runLogout,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored sessions",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check that the session is accepted by the platform",
	Args:  cobra.NoArgs,
	RunE:  runVerify,
}

var guideCmd = &cobra.Command{
	Use:   "guide",
	Short: "Show how to copy the session cookie from a browser",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		auth.ShowCookieExtractionGuide(os.Stdout, cfg.Platform)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd, logoutCmd, listCmd, verifyCmd, guideCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	account := cfg.Session.Account
	if account == "" {
		account = auth.DefaultAccount
	}

	reader := bufio.NewReader(os.Stdin)
	auth.ShowQuickExtractGuide(os.Stdout, cfg.Platform)

	if existing, _ := manager.Retrieve(cfg.Platform, account); existing != nil {
		fmt.Printf("\n⚠️  Session '%s' already exists. Replace it? (y/N): ", existing.Key())
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return nil
		}
	}

	var cookie string
	for {
		fmt.Printf("\n🔐 %s session cookie (hidden): ", cfg.Platform)
		cookie, err = readPassword(reader)
		if err != nil {
			return fmt.Errorf("failed to read session: %w", err)
		}
		if cookie == "help" {
			auth.ShowCookieExtractionGuide(os.Stdout, cfg.Platform)
			continue
		}
		if len(cookie) >= 16 {
			break
		}
		fmt.Println("\n❌ That doesn't look like a session cookie. Type 'help' for instructions.")
	}

	fmt.Print("🌐 User Agent (press Enter to use default): ")
	userAgent, _ := reader.ReadString('\n')

	session := &auth.Session{
		Platform:  cfg.Platform,
		Account:   account,
		Cookie:    cookie,
		UserAgent: strings.TrimSpace(userAgent),
	}
	if err := manager.Store(session); err != nil {
		return err
	}

	ui.PrintSuccess("Session saved: " + session.Key())
	fmt.Println("\nRun 'archivist auth verify' to check it, then 'archivist sync'.")
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	if err := manager.Delete(cfg.Platform, cfg.Session.Account); err != nil {
		return err
	}
	ui.PrintSuccess("Session removed")
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	sessions, err := manager.List()
	if err != nil {
		return err
	}

	if len(sessions) == 0 {
		ui.PrintInfo("No stored sessions", "Use 'archivist auth login' to add one")
		return nil
	}

	for i, s := range sessions {
		sanitized := auth.SanitizeSession(s)
		fmt.Printf("%d. %s\n", i+1, sanitized.Key())
		fmt.Printf("   Cookie: %s\n", sanitized.Cookie)
		if sanitized.UserAgent != "" {
			fmt.Printf("   User Agent: %s\n", sanitized.UserAgent)
		}
		fmt.Printf("   Last Modified: %s\n", sanitized.LastModified.Format("2006-01-02 15:04:05"))
		if sanitized.VerifiedAt.IsZero() {
			fmt.Printf("   Verified: never\n\n")
		} else {
			fmt.Printf("   Verified: %s\n\n", sanitized.VerifiedAt.Format("2006-01-02 15:04:05"))
		}
	}
	return nil
}

func runVerify(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	log, err := newLogger(cfg, true)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cookie, userAgent, err := resolveSession(cfg, log)
	if err != nil {
		return err
	}
	who, err := verifySession(ctx, cfg, cookie, userAgent, log)
	if err != nil {
		return err
	}
	ui.PrintSuccess(fmt.Sprintf("Session accepted by %s (%s)", cfg.Platform, who))

	if manager, err := auth.NewManager(); err == nil {
		if err := manager.MarkVerified(cfg.Platform, cfg.Session.Account, cookie); err != nil {
			log.WithError(err).Debug("Session not recorded as verified")
		}
	}
	return nil
}

// verifySession makes one authenticated request and describes the result
func verifySession(ctx context.Context, cfg *config.Config, cookie, userAgent string, log logger.Logger) (string, error) {
	c := newClient(cfg, cookie, userAgent, log)

	switch cfg.Platform {
	case "patreon":
		user, err := patreon.NewAPI(c, patreonAPI, log).CurrentUser(ctx)
		if err != nil {
			return "", err
		}
		return user.FullName, nil
	default:
		following, err := fanbox.NewAPI(c, fanboxAPI, log).FollowingCreators(ctx)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("following %d creators", len(following)), nil
	}
}

// readPassword reads a secret from stdin without echoing when possible
func readPassword(reader *bufio.Reader) (string, error) {
	if term.IsTerminal(int(syscall.Stdin)) {
		password, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err == nil {
			return strings.TrimSpace(string(password)), nil
		}
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
