package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/tealeg/xlsx/v3"

	"github.com/ammerola/pos-ledger/internal/adapters/db"
	"github.com/ammerola/pos-ledger/internal/core/domain"
	"github.com/ammerola/pos-ledger/internal/core/services"
	"github.com/ammerola/pos-ledger/internal/handlers/middleware"
	"github.com/ammerola/pos-ledger/internal/pkg/config"
	"github.com/ammerola/pos-ledger/internal/pkg/logger"
)

// CatalogRow is one product line of the seed catalog
type CatalogRow struct {
	Name     string
	Barcode  string
	Category string
	Price    int64 // minor units
	Stock    int64
	MinStock int64
	Supplier string
	UnitCost int64 // minor units
}

// defaultCatalog is used when no catalog workbook is given
func defaultCatalog() []CatalogRow {
	return []CatalogRow{
		{Name: "Mineral Water 600ml", Barcode: "8991002101001", Category: "Beverages", Price: 350000, Stock: 120, MinStock: 24, Supplier: "PT Sumber Air", UnitCost: 250000},
		{Name: "Green Tea Bottle", Barcode: "8991002101002", Category: "Beverages", Price: 600000, Stock: 60, MinStock: 12, Supplier: "PT Sumber Air", UnitCost: 420000},
		{Name: "Instant Noodles", Barcode: "8992388101003", Category: "Groceries", Price: 310000, Stock: 200, MinStock: 40, Supplier: "CV Maju Jaya", UnitCost: 240000},
		{Name: "Rice 5kg", Barcode: "8992388101004", Category: "Groceries", Price: 7500000, Stock: 25, MinStock: 5, Supplier: "CV Maju Jaya", UnitCost: 6400000},
		{Name: "Potato Chips", Barcode: "8996001301005", Category: "Snacks", Price: 1200000, Stock: 48, MinStock: 10, Supplier: "CV Maju Jaya", UnitCost: 850000},
		{Name: "Chocolate Bar", Barcode: "8996001301006", Category: "Snacks", Price: 950000, Stock: 40, MinStock: 8, Supplier: "PT Manis Sentosa", UnitCost: 700000},
		{Name: "Bath Soap", Barcode: "8999999101007", Category: "Household", Price: 450000, Stock: 72, MinStock: 12, Supplier: "PT Bersih Selalu", UnitCost: 300000},
		{Name: "Dish Detergent", Barcode: "8999999101008", Category: "Household", Price: 1500000, Stock: 30, MinStock: 6, Supplier: "PT Bersih Selalu", UnitCost: 1100000},
	}
}

// parseAmount converts a decimal string such as "12.50" to minor units
func parseAmount(val string, exponent int32) (int64, error) {
	val = strings.TrimSpace(strings.ReplaceAll(val, ",", ""))
	if val == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(val)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", val, err)
	}
	minor := d.Shift(exponent)
	if !minor.Equal(minor.Truncate(0)) {
		return 0, fmt.Errorf("amount %q has more than %d decimal places", val, exponent)
	}
	return minor.IntPart(), nil
}

// LoadCatalog reads products from the first sheet of a workbook with the
// columns name, barcode, category, price, stock, min_stock, supplier, unit_cost.
func LoadCatalog(path string, exponent int32) ([]CatalogRow, error) {
	file, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	if len(file.Sheets) == 0 {
		return nil, fmt.Errorf("no sheets found in catalog")
	}

	var rows []CatalogRow
	rowIdx := 0
	err = file.Sheets[0].ForEachRow(func(r *xlsx.Row) error {
		rowIdx++
		// Skip header
		if rowIdx == 1 {
			return nil
		}

		get := func(i int) string {
			c := r.GetCell(i)
			if c == nil {
				return ""
			}
			return strings.TrimSpace(c.String())
		}

		name := get(0)
		if name == "" {
			return nil
		}

		var err error
		row := CatalogRow{Name: name, Barcode: get(1), Category: get(2), Supplier: get(6)}
		if row.Price, err = parseAmount(get(3), exponent); err != nil {
			return fmt.Errorf("row %d: %w", rowIdx, err)
		}
		if row.UnitCost, err = parseAmount(get(7), exponent); err != nil {
			return fmt.Errorf("row %d: %w", rowIdx, err)
		}
		if row.Stock, err = parseCount(get(4)); err != nil {
			return fmt.Errorf("row %d: stock: %w", rowIdx, err)
		}
		if row.MinStock, err = parseCount(get(5)); err != nil {
			return fmt.Errorf("row %d: min_stock: %w", rowIdx, err)
		}
		rows = append(rows, row)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func parseCount(val string) (int64, error) {
	if val == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("must not be negative")
	}
	return n, nil
}

// Seeder writes the catalog through the repositories and the ledger engine
type Seeder struct {
	categories db.Repository[domain.Category]
	suppliers  db.Repository[domain.Supplier]
	products   *db.ProductRepository
	engine     *services.LedgerEngine
	actorID    int64
	logger     *slog.Logger

	categoryIDs map[string]int64
	supplierIDs map[string]int64
}

func (s *Seeder) category(ctx context.Context, name string) (*int64, error) {
	if name == "" {
		return nil, nil
	}
	if id, ok := s.categoryIDs[name]; ok {
		return &id, nil
	}

	existing, err := s.categories.FindAll(ctx, db.WithNameLike(name))
	if err != nil {
		return nil, err
	}
	for _, c := range existing {
		if strings.EqualFold(c.Name, name) {
			s.categoryIDs[name] = c.ID
			return &c.ID, nil
		}
	}

	c := &domain.Category{Name: name}
	if err := s.categories.Create(ctx, c); err != nil {
		return nil, err
	}
	s.categoryIDs[name] = c.ID
	return &c.ID, nil
}

func (s *Seeder) supplier(ctx context.Context, name string) (*int64, error) {
	if name == "" {
		return nil, nil
	}
	if id, ok := s.supplierIDs[name]; ok {
		return &id, nil
	}

	existing, err := s.suppliers.FindAll(ctx, db.WithNameLike(name))
	if err != nil {
		return nil, err
	}
	for _, sp := range existing {
		if strings.EqualFold(sp.Name, name) {
			s.supplierIDs[name] = sp.ID
			return &sp.ID, nil
		}
	}

	sp := &domain.Supplier{Name: name}
	if err := s.suppliers.Create(ctx, sp); err != nil {
		return nil, err
	}
	s.supplierIDs[name] = sp.ID
	return &sp.ID, nil
}

// product finds a product by barcode or creates it with zero stock. Opening
// stock is booked as a restock so it shows up in the ledger.
func (s *Seeder) product(ctx context.Context, row CatalogRow) (*domain.Product, bool, error) {
	if row.Barcode != "" {
		found, _, err := s.products.List(ctx, domain.ProductFilter{Search: row.Barcode, PageSize: 10})
		if err != nil {
			return nil, false, err
		}
		for _, p := range found {
			if p.Barcode == row.Barcode {
				return p, false, nil
			}
		}
	}

	categoryID, err := s.category(ctx, row.Category)
	if err != nil {
		return nil, false, fmt.Errorf("category %q: %w", row.Category, err)
	}

	p := &domain.Product{
		Name:       row.Name,
		Barcode:    row.Barcode,
		CategoryID: categoryID,
		Price:      row.Price,
		MinStock:   row.MinStock,
	}
	if err := p.Validate(); err != nil {
		return nil, false, err
	}
	p.PrepareForStorage()
	if err := s.products.Create(ctx, p); err != nil {
		return nil, false, err
	}
	return p, true, nil
}

func (s *Seeder) openingStock(ctx context.Context, p *domain.Product, row CatalogRow) error {
	if row.Stock == 0 {
		return nil
	}
	supplierID, err := s.supplier(ctx, row.Supplier)
	if err != nil {
		return fmt.Errorf("supplier %q: %w", row.Supplier, err)
	}

	op := domain.NewRestock(s.actorID, supplierID, []domain.LineRequest{
		{ProductID: p.ID, Quantity: row.Stock, UnitCost: row.UnitCost},
	}).WithIdempotencyKey(fmt.Sprintf("seed-restock-%d", p.ID))

	_, err = s.engine.ApplyAndNotify(ctx, op)
	return err
}

// simulateSales books count random sales. Keys are deterministic so a rerun
// replays instead of selling twice.
func (s *Seeder) simulateSales(ctx context.Context, ids []int64, count int, seed uint64) (committed, rejected int) {
	if len(ids) == 0 {
		return 0, 0
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x5eed))
	methods := []string{domain.PaymentCash, domain.PaymentCard}

	for i := 0; i < count; i++ {
		used := map[int64]bool{}
		var lines []domain.LineRequest
		for n := 1 + rng.IntN(3); n > 0; n-- {
			id := ids[rng.IntN(len(ids))]
			if used[id] {
				continue
			}
			used[id] = true
			lines = append(lines, domain.LineRequest{ProductID: id, Quantity: 1 + rng.Int64N(3)})
		}

		op := domain.NewSale(s.actorID, lines, methods[rng.IntN(len(methods))]).
			WithIdempotencyKey(fmt.Sprintf("seed-sale-%d-%04d", seed, i))

		if _, err := s.engine.ApplyAndNotify(ctx, op); err != nil {
			if errors.Is(err, domain.ErrInsufficientStock) {
				rejected++
				continue
			}
			s.logger.Warn("sale failed", slog.Int("sale", i), slog.String("error", err.Error()))
			rejected++
			continue
		}
		committed++
	}
	return committed, rejected
}

func main() {
	// Parse flags
	var (
		catalogFile = flag.String("catalog", "", "Excel catalog (name, barcode, category, price, stock, min_stock, supplier, unit_cost)")
		sales       = flag.Int("sales", 50, "Number of random sales to book")
		seed        = flag.Uint64("seed", 1, "Random seed for simulated sales")
		actorID     = flag.Int64("actor", 1, "Actor id recorded on seeded operations")
		logLevel    = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
		dryRun      = flag.Bool("dry-run", false, "Validate the catalog without touching the database")
		migrate     = flag.Bool("migrate", true, "Apply migrations before seeding")
		reset       = flag.Bool("reset", false, "Roll back every migration first (destroys all data)")
	)
	flag.Parse()

	slogger := logger.SetupLogger(*logLevel, "text")

	cfg, err := config.Load(slogger)
	if err != nil {
		slogger.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	catalog := defaultCatalog()
	if *catalogFile != "" {
		catalog, err = LoadCatalog(*catalogFile, cfg.Reports.CurrencyExponent)
		if err != nil {
			slogger.Error("failed to load catalog", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}
	slogger.Info("catalog loaded", slog.Int("products", len(catalog)))

	if *dryRun {
		for _, row := range catalog {
			fmt.Printf("  - %-28s %-14s price=%d stock=%d\n", row.Name, row.Barcode, row.Price, row.Stock)
		}
		fmt.Println("\n[DRY RUN] No changes were made to the database")
		return
	}

	ctx := context.Background()
	database, err := db.NewDatabase(ctx, &db.Config{
		Host:           cfg.Database.Host,
		Port:           cfg.Database.Port,
		User:           cfg.Database.User,
		Password:       cfg.Database.Password,
		Database:       cfg.Database.Name,
		SSLMode:        cfg.Database.SSLMode,
		MaxConnections: 4,
		MinConnections: 1,
		ConnectTimeout: cfg.Database.ConnectTimeout,
	}, slogger)
	if err != nil {
		slogger.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer database.Close()

	migrationConfig := &db.MigrationConfig{
		DatabaseURL: cfg.GetDatabaseURL(),
		SourcePath:  cfg.Database.MigrationPath,
		TableName:   "schema_migrations",
		SchemaName:  "public",
	}

	if *reset {
		if cfg.IsProduction() || !*migrate {
			slogger.Error("reset needs -migrate and is refused in production")
			os.Exit(1)
		}
		if err := resetSchema(ctx, migrationConfig, slogger); err != nil {
			slogger.Error("failed to reset schema", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	if *migrate {
		if err := db.RunMigrationsWithRetry(ctx, migrationConfig, slogger, 3); err != nil {
			slogger.Error("failed to run migrations", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	pool := database.Pool()
	seeder := &Seeder{
		categories: db.NewCategoryRepository(pool),
		suppliers:  db.NewSupplierRepository(pool),
		products:   db.NewProductRepository(pool, slogger),
		engine: services.NewLedgerEngine(
			db.NewStockStore(database, cfg.Ledger.LockTimeout, slogger),
			db.NewLedgerRepository(pool, slogger),
			services.NewAuditRecorder(),
			nil,
			services.LedgerOptions{UnitTimeout: cfg.Ledger.UnitTimeout},
			slogger,
		),
		actorID:     *actorID,
		logger:      slogger,
		categoryIDs: map[string]int64{},
		supplierIDs: map[string]int64{},
	}

	var (
		ids     []int64
		created int
		failed  []string
	)
	for i, row := range catalog {
		fmt.Printf("PROGRESS: %d/%d: %s\n", i+1, len(catalog), row.Name)

		p, isNew, err := seeder.product(ctx, row)
		if err != nil {
			fmt.Printf("ERROR: %s - %v\n", row.Name, err)
			failed = append(failed, row.Name)
			continue
		}
		if isNew {
			created++
		}
		if err := seeder.openingStock(ctx, p, row); err != nil {
			fmt.Printf("ERROR: opening stock for %s - %v\n", row.Name, err)
			failed = append(failed, row.Name)
			continue
		}
		ids = append(ids, p.ID)
	}

	committed, rejected := seeder.simulateSales(ctx, ids, *sales, *seed)

	// Summary
	fmt.Println("\n" + strings.Repeat("=", 60))
	fmt.Println("SEEDING SUMMARY")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("Products in catalog: %d\n", len(catalog))
	fmt.Printf("Products created:    %d\n", created)
	fmt.Printf("Sales committed:     %d\n", committed)
	fmt.Printf("Sales rejected:      %d\n", rejected)
	if len(failed) > 0 {
		fmt.Printf("\nFailed products (%d):\n", len(failed))
		for _, name := range failed {
			fmt.Printf("  - %s\n", name)
		}
	}

	token, err := middleware.NewTokenVerifier(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer).
		Sign(middleware.Actor{ID: *actorID, Role: middleware.RoleAdmin}, cfg.Auth.TokenTTL)
	if err != nil {
		slogger.Error("failed to sign admin token", slog.String("error", err.Error()))
		os.Exit(1)
	}
	fmt.Printf("\nAdmin token (actor %d):\n%s\n", *actorID, token)

	slogger.Info("seed operation completed",
		slog.Int("products_created", created),
		slog.Int("sales_committed", committed),
		slog.Int("failed", len(failed)))
}

func resetSchema(ctx context.Context, cfg *db.MigrationConfig, logger *slog.Logger) error {
	migrator, err := db.NewMigrator(cfg, logger)
	if err != nil {
		return err
	}
	defer migrator.Close()

	return migrator.Reset(ctx)
}
