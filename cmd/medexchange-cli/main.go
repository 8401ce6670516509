// Package main предоставляет консольный клиент биржи, работающий с локальной базой SQLite.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/zap"

	"github.com/billy-enrizky/matchmaking-drugs-v2/internal/credential"
	"github.com/billy-enrizky/matchmaking-drugs-v2/internal/csvimport"
	"github.com/billy-enrizky/matchmaking-drugs-v2/internal/matching"
	"github.com/billy-enrizky/matchmaking-drugs-v2/internal/model"
	"github.com/billy-enrizky/matchmaking-drugs-v2/internal/notify"
	"github.com/billy-enrizky/matchmaking-drugs-v2/internal/repository"
	"github.com/billy-enrizky/matchmaking-drugs-v2/internal/service"
	"github.com/billy-enrizky/matchmaking-drugs-v2/internal/session"
)

const usage = `usage: medexchange-cli <command> [flags]

commands:
  check-email  capture the account email
  register     create an account for the captured email
  hospital     submit the hospital profile
  login        sign in with email and password
  logout       end the session
  whoami       print the current session
  request      submit a drug request (drugs inline or from -csv)
  offer        submit a drug offer (drugs inline or from -csv)
  matches      list matches of the signed-in hospital (-max-distance, -status)`

type cliConfig struct {
	DBPath         string  `env:"DB_PATH" envDefault:"medexchange.db"`
	SessionDir     string  `env:"SESSION_DIR" envDefault:".sessions"`
	BcryptCost     int     `env:"BCRYPT_COST" envDefault:"10"`
	MatchThreshold float64 `env:"MATCH_THRESHOLD" envDefault:"0.5"`
}

type app struct {
	repo    *repository.SQLiteRepository
	session *session.Session
	service *service.Service
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	var cfg cliConfig
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("Failed to read configuration: %v", err)
	}

	ctx := context.Background()

	a, err := open(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}
	defer a.repo.Close()

	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "check-email":
		err = a.checkEmail(ctx, args)
	case "register":
		err = a.register(ctx, args)
	case "hospital":
		err = a.hospital(ctx, args)
	case "login":
		err = a.login(ctx, args)
	case "logout":
		err = a.session.Logout(ctx)
		if err == nil {
			fmt.Println("Signed out.")
		}
	case "whoami":
		err = printJSON(a.session.Snapshot())
	case "request":
		err = a.request(ctx, args)
	case "offer":
		err = a.offer(ctx, args)
	case "matches":
		err = a.matches(ctx, args, os.Stdout)
	default:
		fmt.Println(usage)
		os.Exit(1)
	}

	if err != nil {
		log.Fatalf("%s: %v", cmd, err)
	}
}

func open(ctx context.Context, cfg cliConfig) (*app, error) {
	logger := zap.NewNop()

	repo, err := repository.NewSQLiteRepository(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	storage, err := session.NewFileStorage(cfg.SessionDir)
	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("open session storage: %w", err)
	}

	manager := session.NewManager(credential.NewStore(repo, cfg.BcryptCost, logger), storage, logger)
	s, err := manager.Open(ctx, session.StorageKey)
	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("open session: %w", err)
	}

	engine := matching.NewEngine(cfg.MatchThreshold, logger)
	svc := service.NewService(repo, engine, notify.NewLogNotifier(logger), logger)

	return &app{repo: repo, session: s, service: svc}, nil
}

func (a *app) checkEmail(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("check-email", flag.ExitOnError)
	email := fs.String("email", "", "Account email")
	fs.Parse(args)

	status, err := a.session.CheckEmail(ctx, session.EmailInput{Email: *email})
	if err != nil {
		return err
	}

	if status == session.EmailExisting {
		fmt.Println("Account exists, run 'login'.")
		return nil
	}
	fmt.Println("New account, run 'register'.")
	return nil
}

func (a *app) register(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	password := fs.String("password", "", "Account password")
	fs.Parse(args)

	in := session.RegistrationInput{Password: *password}
	if snap := a.session.Snapshot(); snap.Email != "" {
		in.Email = snap.Email
	}

	if err := a.session.Register(ctx, in); err != nil {
		return err
	}
	fmt.Println("Account created, run 'hospital' to finish.")
	return nil
}

func (a *app) hospital(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("hospital", flag.ExitOnError)
	name := fs.String("name", "", "Hospital name")
	license := fs.String("license", "", "License number")
	line1 := fs.String("address", "", "Street address")
	city := fs.String("city", "", "City")
	state := fs.String("state", "", "State or province")
	zip := fs.String("zip", "", "ZIP or postal code")
	lat := fs.Float64("lat", 0, "Latitude")
	lng := fs.Float64("lng", 0, "Longitude")
	repName := fs.String("rep-name", "", "Representative name")
	repTitle := fs.String("rep-title", "", "Representative title")
	repEmail := fs.String("rep-email", "", "Representative email")
	repPhone := fs.String("rep-phone", "", "Representative phone")
	fs.Parse(args)

	in := session.HospitalProfileInput{
		Name:          *name,
		LicenseNumber: *license,
		Address: model.Address{
			Line1:   *line1,
			City:    *city,
			State:   *state,
			ZipCode: *zip,
		},
		Representative: model.Representative{
			Name:  *repName,
			Title: *repTitle,
			Email: *repEmail,
			Phone: *repPhone,
		},
	}
	if *lat != 0 || *lng != 0 {
		in.Address.Coordinates = &model.Coordinates{Latitude: *lat, Longitude: *lng}
	}

	if err := a.session.SubmitHospitalProfile(ctx, in); err != nil {
		return err
	}
	fmt.Printf("Hospital '%s' registered.\n", *name)
	return nil
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	email := fs.String("email", "", "Account email")
	password := fs.String("password", "", "Account password")
	fs.Parse(args)

	if err := a.session.Login(ctx, session.LoginInput{Email: *email, Password: *password}); err != nil {
		return err
	}

	if h := a.session.Hospital(); h != nil {
		fmt.Printf("Signed in as %s.\n", h.Name)
		return nil
	}
	fmt.Println("Signed in, run 'hospital' to finish the profile.")
	return nil
}

func (a *app) request(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("request", flag.ExitOnError)
	drugs := fs.String("drugs", "", "Comma-separated drug names")
	csvPath := fs.String("csv", "", "CSV file with drug_name, din and dosage_needed columns")
	maxDistance := fs.Float64("max-distance", 50, "Maximum distance in km")
	fs.Parse(args)

	hospital, err := a.hospitalOrFail()
	if err != nil {
		return err
	}

	list, _, err := readDrugs(*drugs, *csvPath)
	if err != nil {
		return err
	}

	req, err := a.service.SubmitRequest(ctx, *hospital, service.RequestInput{Drugs: list, MaxDistanceKm: *maxDistance})
	if err != nil {
		return err
	}
	return printJSON(req)
}

func (a *app) offer(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("offer", flag.ExitOnError)
	drugs := fs.String("drugs", "", "Comma-separated drug names")
	csvPath := fs.String("csv", "", "CSV file with drug_name, din, dosage and expiry_date columns")
	maxDistance := fs.Float64("max-distance", 50, "Maximum distance in km")
	expiry := fs.String("expiry", "", "Expiry date, YYYY-MM-DD")
	fs.Parse(args)

	hospital, err := a.hospitalOrFail()
	if err != nil {
		return err
	}

	list, expiryDate, err := readDrugs(*drugs, *csvPath)
	if err != nil {
		return err
	}
	if *expiry != "" {
		t, err := time.Parse(csvimport.DateLayout, *expiry)
		if err != nil {
			return fmt.Errorf("invalid expiry date %q: %w", *expiry, err)
		}
		expiryDate = &t
	}

	offer, err := a.service.SubmitOffer(ctx, *hospital, service.OfferInput{
		Drugs:         list,
		MaxDistanceKm: *maxDistance,
		ExpiryDate:    expiryDate,
	})
	if err != nil {
		return err
	}
	return printJSON(offer)
}

func (a *app) matches(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("matches", flag.ContinueOnError)
	fs.SetOutput(out)
	maxDistance := fs.Float64("max-distance", 0, "Only matches within this many km, 0 for all")
	status := fs.String("status", "", "Only matches in this status: pending, notified, agreed, completed or declined")
	if err := fs.Parse(args); err != nil {
		return err
	}

	hospital, err := a.hospitalOrFail()
	if err != nil {
		return err
	}

	matches, err := a.service.ListMatches(ctx, hospital.ID, service.MatchFilter{
		MaxDistanceKm: *maxDistance,
		Status:        model.MatchStatus(*status),
	})
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		fmt.Fprintln(out, "No matches yet.")
		return nil
	}

	for _, m := range matches {
		fmt.Fprintf(out, "%s  %-24s  score %.2f  %6.1f km  %s\n", m.ID, m.DrugName, m.SimilarityScore, m.DistanceKm, m.Status)
	}
	return nil
}

func (a *app) hospitalOrFail() (*model.Hospital, error) {
	h := a.session.Hospital()
	if !a.session.IsAuthenticated() || h == nil {
		return nil, fmt.Errorf("not signed in, current state is %s", a.session.State())
	}
	return h, nil
}

// readDrugs берёт препараты из списка названий или из CSV-файла.
// Для CSV возвращается самый ранний срок годности среди строк.
func readDrugs(names, csvPath string) ([]model.Drug, *time.Time, error) {
	if csvPath == "" {
		var drugs []model.Drug
		for _, name := range strings.Split(names, ",") {
			if name = strings.TrimSpace(name); name != "" {
				drugs = append(drugs, model.Drug{Name: name})
			}
		}
		return drugs, nil, nil
	}

	f, err := os.Open(csvPath)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	res, err := csvimport.Parse(f)
	if err != nil {
		return nil, nil, err
	}
	if res.HasErrors() {
		for _, rowErr := range res.Errors {
			fmt.Fprintln(os.Stderr, rowErr.Error())
		}
		return nil, nil, fmt.Errorf("%s has %d invalid rows", csvPath, len(res.Errors))
	}

	var earliest *time.Time
	for _, e := range res.Entries {
		if e.ExpiryDate != nil && (earliest == nil || e.ExpiryDate.Before(*earliest)) {
			earliest = e.ExpiryDate
		}
	}
	return res.Drugs(), earliest, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
