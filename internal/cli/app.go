// Package cli is a thin line-oriented driver over the vault, for local use
// and smoke testing. It renders returned metadata and history; ciphertext
// and keys pass through it as opaque values.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/evault-dev/evault/internal/common"
	"github.com/evault-dev/evault/internal/vault"
	"github.com/evault-dev/evault/internal/vault/models"
)

// App holds the REPL state: the vault and, after login, the session token.
type App struct {
	vault   *vault.Vault
	reader  *bufio.Reader
	out     io.Writer
	session *models.Session
}

func NewApp(v *vault.Vault) *App {
	return &App{vault: v, reader: bufio.NewReader(os.Stdin), out: os.Stdout}
}

func (a *App) loggedIn() bool { return a.session != nil }

func (a *App) prompt() string {
	if a.loggedIn() {
		return a.session.Username
	}
	return "guest"
}

// Run starts the read-eval-print loop. It exits on EOF or "exit"/"quit".
// Command handler errors are printed and the loop continues; the user
// re-issues the whole operation.
func (a *App) Run(ctx context.Context) {
	for {
		fmt.Fprintf(a.out, "evault %s> ", a.prompt())
		line, err := a.reader.ReadString('\n')
		if err != nil {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		if cmd == "exit" || cmd == "quit" {
			return
		}
		if err := a.dispatch(ctx, cmd, args); err != nil {
			fmt.Fprintf(a.out, "error: %v\n", err)
		}
	}
}

func (a *App) dispatch(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "help":
		a.printHelp()
		return nil
	case "register":
		return a.register(ctx)
	case "login":
		return a.login(ctx)
	case "logout":
		return a.logout(ctx)
	case "passwd":
		return a.changePassword(ctx)
	case "upload":
		return a.upload(ctx, args)
	case "get":
		return a.get(ctx, args)
	case "list":
		return a.list(ctx)
	case "transfer":
		return a.transfer(ctx, args)
	case "history":
		return a.history(ctx, args)
	case "transactions":
		return a.transactions(ctx)
	case "verify":
		return a.verify(ctx)
	default:
		fmt.Fprintf(a.out, "unknown command %q, try help\n", cmd)
		return nil
	}
}

func (a *App) printHelp() {
	if a.loggedIn() {
		fmt.Fprintln(a.out, "Available commands: upload <file>, get <hash> [out], list, transfer <hash> <user>, history <hash>, transactions, verify, passwd, logout, exit")
	} else {
		fmt.Fprintln(a.out, "Available commands: register, login, verify, exit")
	}
}

func (a *App) register(ctx context.Context) error {
	username, err := GetSimpleText(a.reader, "Username", a.out)
	if err != nil {
		return err
	}
	email, err := GetSimpleText(a.reader, "Email", a.out)
	if err != nil {
		return err
	}
	password, err := GetPassword(a.out, "Enter password: ")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if _, err := a.vault.RegisterUser(ctx, username, string(password), email); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "registered, now login")
	return nil
}

func (a *App) login(ctx context.Context) error {
	username, err := GetSimpleText(a.reader, "Username", a.out)
	if err != nil {
		return err
	}
	password, err := GetPassword(a.out, "Enter password: ")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	session, err := a.vault.Login(ctx, username, string(password))
	if err != nil {
		return err
	}
	a.session = session
	fmt.Fprintf(a.out, "logged in as %s\n", session.Username)
	return nil
}

func (a *App) logout(ctx context.Context) error {
	if !a.loggedIn() {
		return nil
	}
	if _, err := a.vault.Logout(ctx, a.session.Token); err != nil {
		return err
	}
	a.session = nil
	fmt.Fprintln(a.out, "logged out")
	return nil
}

func (a *App) changePassword(ctx context.Context) error {
	if !a.loggedIn() {
		return common.ErrUnauthorized
	}
	oldPw, err := GetPassword(a.out, "Old password: ")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(oldPw)
	newPw, err := GetPassword(a.out, "New password: ")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(newPw)

	if err := a.vault.ChangePassword(ctx, a.session.Token, string(oldPw), string(newPw)); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "password changed")
	return nil
}

func (a *App) upload(ctx context.Context, args []string) error {
	if !a.loggedIn() {
		return common.ErrUnauthorized
	}
	if len(args) < 1 {
		return fmt.Errorf("usage: upload <file>")
	}
	path := args[0]
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	record, err := a.vault.UploadDocument(ctx, a.session.Token, filepath.Base(path), content, detectMime(path))
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "uploaded %s (%d bytes)\nhash: %s\n", record.Name, record.Size, record.ContentHash)
	return nil
}

func (a *App) get(ctx context.Context, args []string) error {
	if !a.loggedIn() {
		return common.ErrUnauthorized
	}
	if len(args) < 1 {
		return fmt.Errorf("usage: get <hash> [out-file]")
	}

	plaintext, record, err := a.vault.GetDocument(ctx, a.session.Token, args[0])
	if err != nil {
		return err
	}
	if len(args) > 1 {
		if err := os.WriteFile(args[1], plaintext, 0o600); err != nil {
			return fmt.Errorf("write %s: %w", args[1], err)
		}
		fmt.Fprintf(a.out, "wrote %s (%d bytes) to %s\n", record.Name, record.Size, args[1])
		return nil
	}
	fmt.Fprintf(a.out, "%s\n", plaintext)
	return nil
}

func (a *App) list(ctx context.Context) error {
	if !a.loggedIn() {
		return common.ErrUnauthorized
	}
	docs, err := a.vault.ListDocuments(ctx, a.session.Token)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		fmt.Fprintln(a.out, "no documents")
		return nil
	}
	for hash, record := range docs {
		fmt.Fprintf(a.out, "%s  %s  %s  %d bytes\n", hash, record.Name, record.MimeType, record.Size)
	}
	return nil
}

func (a *App) transfer(ctx context.Context, args []string) error {
	if !a.loggedIn() {
		return common.ErrUnauthorized
	}
	if len(args) < 2 {
		return fmt.Errorf("usage: transfer <hash> <recipient>")
	}
	record, err := a.vault.TransferDocument(ctx, a.session.Token, args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "transferred %s to %s\n", record.Name, args[1])
	return nil
}

func (a *App) history(ctx context.Context, args []string) error {
	if !a.loggedIn() {
		return common.ErrUnauthorized
	}
	if len(args) < 1 {
		return fmt.Errorf("usage: history <hash>")
	}
	records, err := a.vault.DocumentHistory(ctx, a.session.Token, args[0])
	if err != nil {
		return err
	}
	a.printTransactions(records)
	return nil
}

func (a *App) transactions(ctx context.Context) error {
	if !a.loggedIn() {
		return common.ErrUnauthorized
	}
	records, err := a.vault.ListTransactions(ctx, a.session.Token)
	if err != nil {
		return err
	}
	a.printTransactions(records)
	return nil
}

func (a *App) printTransactions(records []models.TransactionRecord) {
	if len(records) == 0 {
		fmt.Fprintln(a.out, "no transactions")
		return
	}
	for _, r := range records {
		switch r.Type {
		case models.TxUpload:
			fmt.Fprintf(a.out, "block %d  upload    %s by %s\n", r.BlockIndex, r.Name, r.UserID)
		case models.TxTransfer:
			fmt.Fprintf(a.out, "block %d  transfer  %s from %s to %s\n", r.BlockIndex, r.Name, r.SenderID, r.RecipientID)
		default:
			fmt.Fprintf(a.out, "block %d  unknown transaction type %q\n", r.BlockIndex, r.Type)
		}
	}
}

func (a *App) verify(ctx context.Context) error {
	if a.vault.VerifyIntegrity(ctx) {
		fmt.Fprintln(a.out, "ledger OK")
	} else {
		fmt.Fprintln(a.out, "LEDGER INTEGRITY FAILURE")
	}
	return nil
}

func detectMime(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt":
		return "text/plain"
	case ".pdf":
		return "application/pdf"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}
