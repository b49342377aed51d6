package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/opulence/opulence-api/internal/config"
	"github.com/opulence/opulence-api/internal/domain/coupon"
	"github.com/opulence/opulence-api/internal/domain/user"
	"github.com/opulence/opulence-api/internal/pkg/database"
	"github.com/opulence/opulence-api/internal/pkg/logger"
	"github.com/opulence/opulence-api/internal/pkg/validator"
)

// importFile is the YAML document shape:
//
//	coupons:
//	  - code: SPRING15
//	    discount_type: percentage
//	    discount_amount: 15
//	    max_uses_total: 100
//	    valid_until: 2026-06-30T23:59:59Z
type importFile struct {
	Coupons []coupon.CreateRequest `yaml:"coupons"`
}

type couponCreator interface {
	Create(ctx context.Context, adminID uuid.UUID, req *coupon.CreateRequest) (*coupon.Coupon, error)
}

type adminFinder interface {
	GetByEmail(ctx context.Context, email string) (*user.User, error)
}

type importResult struct {
	Created int
	Skipped int
	Failed  int
}

func main() {
	file := flag.String("file", "", "path to the coupons YAML file")
	dryRun := flag.Bool("dry-run", false, "validate the file without writing")
	adminEmail := flag.String("admin", "", "email of the admin the coupons are attributed to")
	flag.Parse()

	cfg := config.Load()
	logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env})

	if *file == "" {
		log.Fatal().Msg("-file is required")
	}

	f, err := os.Open(*file)
	if err != nil {
		log.Fatal().Err(err).Str("file", *file).Msg("Failed to open coupons file")
	}
	defer f.Close()

	reqs, err := loadCoupons(f)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to parse coupons file")
	}

	if problems := validateAll(reqs); len(problems) > 0 {
		for _, p := range problems {
			log.Error().Msg(p)
		}
		log.Fatal().Int("invalid", len(problems)).Msg("Coupons file has invalid entries, nothing imported")
	}

	if *dryRun {
		log.Info().Int("coupons", len(reqs)).Msg("Dry run: file is valid")
		return
	}

	ctx := context.Background()
	db, err := database.NewPostgres(ctx, cfg.DatabaseURL, database.PoolConfig{MaxOpenConns: 2})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	adminID, err := resolveAdmin(ctx, user.NewRepository(db), *adminEmail)
	if err != nil {
		log.Fatal().Err(err).Str("admin", *adminEmail).Msg("Cannot attribute coupons")
	}

	svc := coupon.NewService(coupon.NewRepository(db), nil, coupon.Engine{}, nil, nil)
	res := importCoupons(ctx, svc, adminID, reqs)

	log.Info().
		Int("created", res.Created).
		Int("skipped", res.Skipped).
		Int("failed", res.Failed).
		Msg("Coupon import finished")

	if res.Failed > 0 {
		os.Exit(1)
	}
}

func loadCoupons(r io.Reader) ([]coupon.CreateRequest, error) {
	var doc importFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("file is empty")
		}
		return nil, err
	}
	if len(doc.Coupons) == 0 {
		return nil, errors.New("no coupons in file")
	}
	return doc.Coupons, nil
}

// validateAll runs the API's request validation and reports duplicate codes within the file
func validateAll(reqs []coupon.CreateRequest) []string {
	var problems []string
	seen := make(map[string]int, len(reqs))

	for i := range reqs {
		code := coupon.NormalizeCode(reqs[i].Code)
		if errs := validator.Validate(&reqs[i]); errs != nil {
			problems = append(problems, fmt.Sprintf("coupon #%d (%s): %s", i+1, code, formatFieldErrors(errs)))
			continue
		}
		if first, ok := seen[code]; ok {
			problems = append(problems, fmt.Sprintf("coupon #%d (%s): duplicates coupon #%d", i+1, code, first))
			continue
		}
		seen[code] = i + 1
	}
	return problems
}

func formatFieldErrors(errs map[string]string) string {
	fields := make([]string, 0, len(errs))
	for field := range errs {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+errs[field])
	}
	return strings.Join(parts, "; ")
}

// resolveAdmin maps the -admin email to an admin account id. No email means no attribution.
func resolveAdmin(ctx context.Context, users adminFinder, email string) (uuid.UUID, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return uuid.Nil, nil
	}

	u, err := users.GetByEmail(ctx, email)
	if err != nil {
		return uuid.Nil, err
	}
	if !u.IsAdmin() {
		return uuid.Nil, fmt.Errorf("%s is not an admin", email)
	}
	return u.ID, nil
}

// importCoupons creates each coupon, skipping codes that already exist
func importCoupons(ctx context.Context, svc couponCreator, adminID uuid.UUID, reqs []coupon.CreateRequest) importResult {
	var res importResult
	for i := range reqs {
		c, err := svc.Create(ctx, adminID, &reqs[i])
		switch {
		case err == nil:
			res.Created++
			log.Info().Str("code", c.Code).Str("id", c.ID.String()).Msg("Coupon created")
		case errors.Is(err, coupon.ErrCodeExists):
			res.Skipped++
			log.Warn().Str("code", coupon.NormalizeCode(reqs[i].Code)).Msg("Coupon code already exists, skipped")
		default:
			res.Failed++
			log.Error().Err(err).Str("code", coupon.NormalizeCode(reqs[i].Code)).Msg("Failed to create coupon")
		}
	}
	return res
}
