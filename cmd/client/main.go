package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/nexuskeeper/nexus/internal/backup"
	"github.com/nexuskeeper/nexus/internal/models"
	"github.com/nexuskeeper/nexus/internal/scheduler"
	"github.com/nexuskeeper/nexus/internal/storage"
	"github.com/nexuskeeper/nexus/internal/store"
	"github.com/nexuskeeper/nexus/internal/tags"
	"github.com/nexuskeeper/nexus/internal/totp"
	"github.com/nexuskeeper/nexus/internal/vault"
)

var (
	version   string
	buildDate string
)

// app bundles the collaborators the shell commands operate on.
type app struct {
	store      *store.Store
	engine     *vault.Engine
	classifier *tags.Classifier
	codec      *backup.Codec
	ticker     *scheduler.Ticker
	issuer     string
}

// promptDraft reads the fields of a new identity from stdin. Tags are
// toggled through the pending set so only vocabulary tags survive.
func (a *app) promptDraft(scanner *bufio.Scanner) store.Draft {
	read := func(label string) string {
		fmt.Print(label)
		scanner.Scan()
		return strings.TrimSpace(scanner.Text())
	}
	name := read("Name: ")
	secret := read("Secret (base32, leave empty to generate): ")
	if secret == "" {
		secret, _ = totp.GenerateSecretKey()
		fmt.Println("Generated secret:", secret)
	}
	note := read("Note: ")
	hidden := read("Hidden description: ")

	a.classifier.ResetPending()
	for _, t := range vault.Tokenize(read("Tags (" + strings.Join(tags.Vocabulary, ", ") + "): ")) {
		a.classifier.TogglePending(strings.ToUpper(t))
	}
	draft := store.Draft{
		Name:              name,
		Secret:            secret,
		Note:              note,
		HiddenDescription: hidden,
		Tags:              a.classifier.Pending(),
	}
	a.classifier.ResetPending()
	return draft
}

// printList shows the identities visible under the active filter,
// with their current codes.
func (a *app) printList() {
	batch := a.ticker.Current()
	visible := a.classifier.Visible(a.store.Identities())
	if len(visible) == 0 {
		fmt.Println("No identities.")
		return
	}
	for i, ident := range visible {
		marker := " "
		if ident.ID == a.engine.Selected() {
			marker = "*"
		}
		code := batch.Codes[ident.ID]
		if code == "" {
			code = "------"
		}
		tagList := ""
		if len(ident.Tags) > 0 {
			tagList = " [" + strings.Join(ident.Tags, ",") + "]"
		}
		fmt.Printf("%s %2d. %s  %s%s  (%s)\n", marker, i+1, code, ident.Name, tagList, ident.ID)
	}
	fmt.Printf("Next code in %ds\n", batch.Remaining)
}

// printVault shows the selected identity's vault slots with their
// interaction states, masking filled slots unless revealed.
func (a *app) printVault() {
	ident, ok := a.store.Get(a.engine.Selected())
	if !ok {
		fmt.Println("No identity selected.")
		return
	}
	for i, slot := range ident.Vault {
		display := ""
		state := a.engine.State(i)
		switch state {
		case vault.IdleEmpty:
			display = "(empty)"
		case vault.IdleRevealed, vault.JustPasted:
			display = slot
		default:
			display = strings.Repeat("•", len(slot))
		}
		fmt.Printf("  %2d. %-14s %s\n", i, display, state)
	}
}

// repl runs the interactive shell loop.
func (a *app) repl() {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("nexus> ")
		if !scanner.Scan() {
			break
		}
		args := strings.Fields(strings.TrimSpace(scanner.Text()))
		if len(args) == 0 {
			continue
		}
		switch args[0] {
		case "help":
			fmt.Println("Commands: help, add, list, select <id>, deselect, show, delete <id>,")
			fmt.Println("  note <text>, hidden <text>, tag <TAG>, filter <TAG|all>,")
			fmt.Println("  vault, click <slot>, slot <slot> [code], paste <slot> <text>,")
			fmt.Println("  qr <file.png>, export <file>, import <file> [confirm], exit")
		case "add":
			ident, err := a.store.Add(a.promptDraft(scanner))
			if err != nil {
				fmt.Println("Rejected:", err)
				continue
			}
			fmt.Println("Added", ident.Name, "with id", ident.ID)
		case "list":
			a.printList()
		case "select":
			if len(args) < 2 {
				fmt.Println("Usage: select <id>")
				continue
			}
			if _, ok := a.store.Get(args[1]); !ok {
				fmt.Println("Identity not found")
				continue
			}
			a.engine.Select(args[1])
		case "deselect":
			a.engine.Select("")
		case "show":
			ident, ok := a.store.Get(a.engine.Selected())
			if !ok {
				fmt.Println("No identity selected.")
				continue
			}
			hidden := "(empty)"
			if ident.HiddenDescription != "" {
				hidden = strings.Repeat("•", len(ident.HiddenDescription))
			}
			fmt.Printf("Name: %s\nNote: %s\nHidden: %s\nTags: %s\n",
				ident.Name, ident.Note, hidden, strings.Join(ident.Tags, ", "))
			a.printVault()
		case "delete":
			if len(args) < 2 {
				fmt.Println("Usage: delete <id>")
				continue
			}
			fmt.Print("Delete identity? (y/N): ")
			scanner.Scan()
			if strings.TrimSpace(scanner.Text()) != "y" {
				continue
			}
			a.store.Remove(args[1])
			if a.engine.Selected() == args[1] {
				a.engine.Select("")
			}
			fmt.Println("Deleted")
		case "note", "hidden":
			id := a.engine.Selected()
			if id == "" {
				fmt.Println("No identity selected.")
				continue
			}
			text := strings.Join(args[1:], " ")
			_, err := a.store.Update(id, func(ident *models.Identity) {
				if args[0] == "note" {
					ident.Note = text
				} else {
					ident.HiddenDescription = text
				}
			})
			if err != nil {
				fmt.Println("Update failed:", err)
			}
		case "tag":
			id := a.engine.Selected()
			if len(args) < 2 || id == "" {
				fmt.Println("Usage: tag <TAG> (with an identity selected)")
				continue
			}
			tag := strings.ToUpper(args[1])
			if !tags.Known(tag) {
				fmt.Println("Unknown tag; choose one of", strings.Join(tags.Vocabulary, ", "))
				continue
			}
			_, err := a.store.Update(id, func(ident *models.Identity) {
				ident.Tags = tags.Toggle(ident.Tags, tag)
			})
			if err != nil {
				fmt.Println("Update failed:", err)
			}
		case "filter":
			if len(args) < 2 || strings.EqualFold(args[1], "all") {
				a.classifier.SetFilter(tags.FilterAll)
			} else {
				a.classifier.SetFilter(strings.ToUpper(args[1]))
			}
			a.printList()
		case "vault":
			a.printVault()
		case "click":
			if len(args) < 2 {
				fmt.Println("Usage: click <slot>")
				continue
			}
			i, err := strconv.Atoi(args[1])
			if err != nil {
				fmt.Println("Bad slot index")
				continue
			}
			fmt.Println("Slot", i, "is now", a.engine.Click(i))
		case "slot":
			if len(args) < 2 {
				fmt.Println("Usage: slot <slot> [code]")
				continue
			}
			i, err := strconv.Atoi(args[1])
			if err != nil {
				fmt.Println("Bad slot index")
				continue
			}
			if err := a.engine.Commit(i, strings.Join(args[2:], " ")); err != nil {
				fmt.Println("Commit failed:", err)
			}
		case "paste":
			if len(args) < 3 {
				fmt.Println("Usage: paste <slot> <text>")
				continue
			}
			i, err := strconv.Atoi(args[1])
			if err != nil {
				fmt.Println("Bad slot index")
				continue
			}
			n, err := a.engine.Paste(i, strings.Join(args[2:], " "))
			if err != nil {
				fmt.Println("Paste failed:", err)
				continue
			}
			fmt.Println("Filled", n, "slots")
		case "qr":
			ident, ok := a.store.Get(a.engine.Selected())
			if len(args) < 2 || !ok {
				fmt.Println("Usage: qr <file.png> (with an identity selected)")
				continue
			}
			uri := totp.URI(totp.URIParams{Secret: ident.Secret, AccountName: ident.Name, Issuer: a.issuer})
			if err := qrcode.WriteFile(uri, qrcode.Medium, 256, args[1]); err != nil {
				fmt.Println("QR write failed:", err)
				continue
			}
			fmt.Println("Wrote", args[1])
		case "export":
			if len(args) < 2 {
				fmt.Println("Usage: export <file>")
				continue
			}
			path := args[1]
			if !strings.HasSuffix(path, backup.FileExtension) {
				path += backup.FileExtension
			}
			f, err := os.Create(path)
			if err != nil {
				fmt.Println("Export failed:", err)
				continue
			}
			err = a.codec.Export(f)
			f.Close()
			if err != nil {
				fmt.Println("Export failed:", err)
				continue
			}
			fmt.Println("Exported to", path)
		case "import":
			if len(args) < 2 {
				fmt.Println("Usage: import <file> [confirm]")
				continue
			}
			data, err := os.ReadFile(args[1])
			if err != nil {
				fmt.Println("Import failed:", err)
				continue
			}
			confirmed := len(args) > 2 && args[2] == "confirm"
			if !confirmed {
				fmt.Print("Importing replaces the whole store. Continue? (y/N): ")
				scanner.Scan()
				confirmed = strings.TrimSpace(scanner.Text()) == "y"
			}
			summary, err := a.codec.Import(data, confirmed)
			if err != nil {
				fmt.Println("Import failed:", err)
				continue
			}
			a.engine.Select("")
			fmt.Printf("Imported %d identities (format v%d)\n", summary.Identities, summary.Version)
		case "exit":
			fmt.Println("Bye")
			return
		default:
			fmt.Println("Unknown command. Type 'help' for a list of commands.")
		}
	}
}

// main parses command-line flags and starts the interactive shell.
func main() {
	var (
		storagePath string
		issuer      string
		showVer     bool
	)

	flag.StringVar(&storagePath, "s", "", "path to JSON storage file")
	flag.StringVar(&issuer, "issuer", "Nexus", "issuer for otpauth URIs")
	flag.BoolVar(&showVer, "version", false, "show build version and date")
	flag.Parse()

	if showVer {
		fmt.Printf("Nexus Client\nVersion: %s\nBuild Date: %s\n", version, buildDate)
		return
	}

	st, err := store.New(storage.NewFileStore(storagePath), nil)
	if err != nil {
		log.Fatal(err)
	}

	ticker := scheduler.NewTicker(st, totp.Service{}, nil)
	ticker.Start(context.Background())

	a := &app{
		store:      st,
		engine:     vault.NewEngine(st, nil),
		classifier: tags.NewClassifier(),
		codec:      backup.NewCodec(st, backup.NopObserver{}, nil),
		ticker:     ticker,
		issuer:     issuer,
	}
	a.repl()
}
