package wizard

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/securecookie"
	boxd "github.com/lnbitsbox/boxd/pkg"
	"github.com/sirupsen/logrus"
	"github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/bcrypt"
)

/*
Wizard drives first-run setup of the box:

	seed      generate a 12 word mnemonic (and confirm it was written down)
	          or import an existing one
	password  set the admin login password
	complete  write the Spark sidecar files, then start the stack

Progress is held in memory only and cleared once setup completes. After
the configured marker exists every step is refused.
*/

var (
	ErrConfigured        = errors.New("already configured")
	ErrUnknownAction     = errors.New("unknown action")
	ErrNotConfirmed      = errors.New("please confirm you have saved the seed phrase")
	ErrMnemonicRequired  = errors.New("please enter a mnemonic")
	ErrInvalidMnemonic   = errors.New("invalid mnemonic, please check and try again")
	ErrSeedRequired      = errors.New("please complete the seed setup first")
	ErrPasswordRequired  = errors.New("please enter a password")
	ErrPasswordTooShort  = errors.New("password must be at least 8 characters")
	ErrPasswordMismatch  = errors.New("passwords do not match")
	ErrStepsIncomplete   = errors.New("please complete all setup steps")
	errGroupDoesNotExist = errors.New("group does not exist")
)

const minPasswordLength = 8

type Wizard struct {
	config   boxd.WizardConfig
	envFile  string
	sparkURL string
	devMode  bool
	services boxd.ServiceManager
	state    boxd.StateManager
	log      logrus.FieldLogger

	chpasswd      func(ctx context.Context, user, password string) error
	lookupGroup   func(name string) (int, error)
	chown         func(path string, uid, gid int) error
	finalizeDelay time.Duration

	mu          sync.Mutex
	mnemonic    string
	confirmed   bool
	passwordSet bool
	finalizing  sync.WaitGroup
}

func NewWizard(config boxd.ServerConfig, services boxd.ServiceManager, state boxd.StateManager, log logrus.FieldLogger) *Wizard {
	return &Wizard{
		config:        config.Wizard,
		envFile:       config.LNbits.EnvFile,
		sparkURL:      config.Spark.URL,
		devMode:       config.DevMode,
		services:      services,
		state:         state,
		log:           log.WithField("system", "wizard"),
		chpasswd:      chpasswd,
		lookupGroup:   lookupGroup,
		chown:         os.Chown,
		finalizeDelay: time.Second,
	}
}

func (w *Wizard) Configured() bool {
	_, err := os.Stat(w.config.Marker)
	return err == nil
}

// Step names the next thing the operator has to do.
func (w *Wizard) Step() string {
	if w.Configured() {
		return "done"
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	switch {
	case w.mnemonic == "" || !w.confirmed:
		return "seed"
	case !w.passwordSet:
		return "password"
	default:
		return "complete"
	}
}

// Generate creates a fresh 128 bit mnemonic which still has to be confirmed.
func (w *Wizard) Generate() (string, error) {
	if w.Configured() {
		return "", ErrConfigured
	}
	entropy, err := bip39.NewEntropy(128)
	if err != nil {
		return "", fmt.Errorf("cannot read entropy: %w", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("cannot build mnemonic: %w", err)
	}

	w.mu.Lock()
	w.mnemonic = mnemonic
	w.confirmed = false
	w.mu.Unlock()
	return mnemonic, nil
}

func (w *Wizard) Confirm(confirmed string) error {
	if w.Configured() {
		return ErrConfigured
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.mnemonic == "" {
		return ErrSeedRequired
	}
	if confirmed != "yes" {
		return ErrNotConfirmed
	}
	w.confirmed = true
	return nil
}

func (w *Wizard) Import(mnemonic string) error {
	if w.Configured() {
		return ErrConfigured
	}
	mnemonic = strings.Join(strings.Fields(mnemonic), " ")
	if mnemonic == "" {
		return ErrMnemonicRequired
	}
	if !bip39.IsMnemonicValid(mnemonic) {
		return ErrInvalidMnemonic
	}

	w.mu.Lock()
	w.mnemonic = mnemonic
	w.confirmed = true
	w.mu.Unlock()
	return nil
}

// SetPassword sets the admin user's system password and keeps a bcrypt
// hash for the dashboard login.
func (w *Wizard) SetPassword(ctx context.Context, password1, password2 string) error {
	if w.Configured() {
		return ErrConfigured
	}
	w.mu.Lock()
	ready := w.mnemonic != "" && w.confirmed
	w.mu.Unlock()
	if !ready {
		return ErrSeedRequired
	}

	switch {
	case password1 == "":
		return ErrPasswordRequired
	case len(password1) < minPasswordLength:
		return ErrPasswordTooShort
	case password1 != password2:
		return ErrPasswordMismatch
	}

	if w.devMode {
		w.log.Infof("DEV MODE: would set password for user %s", w.config.AdminUser)
	} else if err := w.chpasswd(ctx, w.config.AdminUser, password1); err != nil {
		return fmt.Errorf("failed to set password: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password1), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("cannot hash password: %w", err)
	}
	if err := w.state.SetAdminPasswordHash(string(hash)); err != nil {
		return fmt.Errorf("cannot store password hash: %w", err)
	}

	w.mu.Lock()
	w.passwordSet = true
	w.mu.Unlock()
	return nil
}

// Complete writes the mnemonic and Spark configuration, clears the wizard
// state and, after a short delay, marks the box configured and starts the
// stack. The delay lets the final page load before the proxy switches over.
func (w *Wizard) Complete() error {
	if w.Configured() {
		return ErrConfigured
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.mnemonic == "" || !w.passwordSet {
		return ErrStepsIncomplete
	}

	if err := os.MkdirAll(filepath.Dir(w.config.MnemonicFile), 0o750); err != nil {
		return fmt.Errorf("cannot create %s: %w", filepath.Dir(w.config.MnemonicFile), err)
	}
	if err := w.writeGroupFile(w.config.MnemonicFile, w.mnemonic+"\n"); err != nil {
		return err
	}
	if err := w.writeSparkConfig(); err != nil {
		return err
	}

	w.mnemonic = ""
	w.confirmed = false
	w.passwordSet = false

	w.finalizing.Add(1)
	go w.finalize()
	return nil
}

// Wait blocks until a pending finalize has run.
func (w *Wizard) Wait() {
	w.finalizing.Wait()
}

func (w *Wizard) finalize() {
	defer w.finalizing.Done()
	time.Sleep(w.finalizeDelay)

	if err := touch(w.config.Marker); err != nil {
		w.log.WithError(err).Error("cannot create configured marker")
		return
	}
	if err := w.state.MarkConfigured(time.Now()); err != nil {
		w.log.WithError(err).Warn("cannot record configuration time")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	for _, unit := range w.config.StartUnits {
		if err := w.services.StartUnit(ctx, unit); err != nil {
			w.log.WithError(err).Warnf("cannot start %s", unit)
		}
	}
	for _, unit := range w.config.ReloadUnits {
		if err := w.services.ReloadUnit(ctx, unit); err != nil {
			w.log.WithError(err).Warnf("cannot reload %s", unit)
		}
	}
	w.log.Info("setup complete")
}

// writeSparkConfig points LNbits at the Spark sidecar unless the env file
// already does, and writes the matching sidecar API key.
func (w *Wizard) writeSparkConfig() error {
	token := hex.EncodeToString(securecookie.GenerateRandomKey(32))

	existing, err := os.ReadFile(w.envFile)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("cannot read %s: %w", w.envFile, err)
	}

	if !bytes.Contains(existing, []byte("SPARK_URL")) {
		var b strings.Builder
		b.WriteString(strings.TrimRight(string(existing), " \t\r\n"))
		b.WriteString("\n\n# Spark L2 Sidecar Configuration (added by configurator)\n")
		b.WriteString("LNBITS_BACKEND_WALLET_CLASS=LightsparkSparkWallet\n")
		fmt.Fprintf(&b, "SPARK_URL=%s\n", w.sparkURL)
		fmt.Fprintf(&b, "SPARK_TOKEN=%s\n", token)

		if err := os.MkdirAll(filepath.Dir(w.envFile), 0o755); err != nil {
			return fmt.Errorf("cannot create %s: %w", filepath.Dir(w.envFile), err)
		}
		if err := writeFileMode(w.envFile, b.String(), 0o640); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(w.config.APIKeyFile), 0o750); err != nil {
		return fmt.Errorf("cannot create %s: %w", filepath.Dir(w.config.APIKeyFile), err)
	}
	return w.writeGroupFile(w.config.APIKeyFile, fmt.Sprintf("SPARK_SIDECAR_API_KEY=%s\n", token))
}

// writeGroupFile writes a 0640 file readable by the Spark sidecar group.
func (w *Wizard) writeGroupFile(path, content string) error {
	if err := writeFileMode(path, content, 0o640); err != nil {
		return err
	}

	gid, err := w.lookupGroup(w.config.SparkGroup)
	if err != nil {
		w.log.WithError(err).Warnf("not changing group of %s", path)
		return nil
	}
	if err := w.chown(path, 0, gid); err != nil {
		if w.devMode {
			w.log.WithError(err).Warnf("DEV MODE: cannot chown %s", path)
			return nil
		}
		return fmt.Errorf("cannot chown %s: %w", path, err)
	}
	return nil
}

func writeFileMode(path, content string, mode os.FileMode) error {
	if err := os.WriteFile(path, []byte(content), mode); err != nil {
		return fmt.Errorf("cannot write %s: %w", path, err)
	}
	// WriteFile leaves the mode of an existing file alone, and umask applies.
	if err := os.Chmod(path, mode); err != nil {
		return fmt.Errorf("cannot chmod %s: %w", path, err)
	}
	return nil
}

func touch(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	return f.Close()
}

func lookupGroup(name string) (int, error) {
	g, err := user.LookupGroup(name)
	if err != nil {
		var unknown user.UnknownGroupError
		if errors.As(err, &unknown) {
			return 0, fmt.Errorf("%s: %w", name, errGroupDoesNotExist)
		}
		return 0, err
	}
	return strconv.Atoi(g.Gid)
}

// chpasswd feeds "user:password" on stdin so the password never shows up
// in a process listing.
func chpasswd(ctx context.Context, user, password string) error {
	cmd := exec.CommandContext(ctx, "chpasswd")
	cmd.Stdin = strings.NewReader(user + ":" + password)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}
