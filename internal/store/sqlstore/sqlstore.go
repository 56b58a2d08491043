// Package sqlstore implements store.Store on MySQL through gorm.
//
// Row locks are SELECT ... FOR UPDATE; conditional updates carry their guard
// in the WHERE clause and report store.ErrConflict when no row matched. The
// connection is opened with clientFoundRows so that an update which leaves a
// row unchanged still counts as matched.
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sitebooks/sitebooks/internal/model"
	"github.com/sitebooks/sitebooks/internal/store"
)

const (
	errDuplicateEntry = 1062
	errDeadlock       = 1213
)

// maxTxAttempts bounds how often WithTx reruns a unit chosen as a deadlock
// victim.
const maxTxAttempts = 3

// Store is a MySQL-backed store.Store.
type Store struct {
	db *gorm.DB
}

// PrepareDSN parses dsn and forces the driver options the store relies on.
func PrepareDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parse dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.ClientFoundRows = true
	return cfg.FormatDSN(), nil
}

// Open connects to MySQL and verifies the connection.
func Open(dsn string, log *zap.Logger) (*Store, error) {
	prepared, err := PrepareDSN(dsn)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(gormmysql.Open(prepared), &gorm.Config{
		Logger:                 NewGormLogger(log),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return New(db), nil
}

// New wraps an existing gorm connection.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates the ledger tables.
func (s *Store) Migrate(ctx context.Context) error {
	err := s.db.WithContext(ctx).AutoMigrate(
		&accountRow{},
		&productRow{},
		&purchaseRow{},
		&purchaseLineRow{},
		&voucherRow{},
		&voucherLineRow{},
		&voucherSeqRow{},
	)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// WithTx runs fn in one database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = s.db.WithContext(ctx).Transaction(func(gtx *gorm.DB) error {
			return fn(ctx, &tx{db: gtx})
		})
		if !isDeadlock(err) || ctx.Err() != nil {
			return err
		}
	}
	return err
}

type tx struct {
	db *gorm.DB
}

func (t *tx) q(ctx context.Context) *gorm.DB {
	return t.db.WithContext(ctx)
}

func forUpdate() clause.Locking {
	return clause.Locking{Strength: "UPDATE"}
}

// isDeadlock reports whether InnoDB rolled the unit back to break a lock cycle.
func isDeadlock(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == errDeadlock
}

func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == errDuplicateEntry
}

func stringsOf[T ~string](in []T) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = string(v)
	}
	return out
}

func notFound(err error, what, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %s: %w", what, id, store.ErrNotFound)
	}
	return fmt.Errorf("load %s %s: %w", what, id, err)
}

func (t *tx) GetAccount(ctx context.Context, companyID, accountID string) (model.Account, error) {
	var row accountRow
	err := t.q(ctx).Where("id = ? AND company_id = ?", accountID, companyID).Take(&row).Error
	if err != nil {
		return model.Account{}, notFound(err, "account", accountID)
	}
	return row.model(), nil
}

func (t *tx) FindAccounts(ctx context.Context, q store.AccountQuery) ([]model.Account, error) {
	db := t.q(ctx).Where("company_id = ?", q.CompanyID)
	if len(q.IDs) > 0 {
		db = db.Where("id IN ?", q.IDs)
	}
	if q.Code != "" {
		db = db.Where("code = ?", q.Code)
	}
	if q.Name != "" {
		if q.NameFold {
			db = db.Where("LOWER(name) = ?", strings.ToLower(q.Name))
		} else {
			db = db.Where("BINARY name = ?", q.Name)
		}
	}
	if q.ParentID != "" {
		db = db.Where("parent_id = ?", q.ParentID)
	}
	if q.ActiveOnly {
		db = db.Where("is_active = ?", true)
	}
	if q.Limit > 0 {
		db = db.Limit(q.Limit)
	}

	var rows []accountRow
	if err := db.Order("code").Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find accounts: %w", err)
	}
	out := make([]model.Account, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.model())
	}
	return out, nil
}

func (t *tx) GetProduct(ctx context.Context, companyID, productID string) (model.Product, error) {
	var row productRow
	err := t.q(ctx).Where("id = ? AND company_id = ?", productID, companyID).Take(&row).Error
	if err != nil {
		return model.Product{}, notFound(err, "product", productID)
	}
	return row.model(), nil
}

func (t *tx) GetVoucher(ctx context.Context, companyID, voucherID string) (model.Voucher, error) {
	return t.loadVoucher(ctx, t.q(ctx), companyID, voucherID)
}

func (t *tx) LockVoucher(ctx context.Context, companyID, voucherID string) (model.Voucher, error) {
	return t.loadVoucher(ctx, t.q(ctx).Clauses(forUpdate()), companyID, voucherID)
}

func (t *tx) loadVoucher(ctx context.Context, db *gorm.DB, companyID, voucherID string) (model.Voucher, error) {
	var row voucherRow
	if err := db.Where("id = ? AND company_id = ?", voucherID, companyID).Take(&row).Error; err != nil {
		return model.Voucher{}, notFound(err, "voucher", voucherID)
	}
	if err := t.q(ctx).Where("voucher_id = ?", row.ID).Order("position").Find(&row.Lines).Error; err != nil {
		return model.Voucher{}, fmt.Errorf("load lines of voucher %s: %w", voucherID, err)
	}
	return row.model(), nil
}

func (t *tx) ListVouchers(ctx context.Context, q store.VoucherQuery) ([]model.Voucher, error) {
	db := t.q(ctx).Where("company_id = ?", q.CompanyID)
	if len(q.Statuses) > 0 {
		db = db.Where("status IN ?", stringsOf(q.Statuses))
	}
	if len(q.Types) > 0 {
		db = db.Where("type IN ?", stringsOf(q.Types))
	}
	if !q.From.IsZero() {
		db = db.Where("date >= ?", q.From)
	}
	if !q.To.IsZero() {
		db = db.Where("date <= ?", q.To)
	}
	if q.Limit > 0 {
		db = db.Limit(q.Limit)
	}

	var rows []voucherRow
	err := db.Preload("Lines", func(db *gorm.DB) *gorm.DB {
		return db.Order("position")
	}).Order("date").Order("voucher_no").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list vouchers: %w", err)
	}
	out := make([]model.Voucher, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.model())
	}
	return out, nil
}

func (t *tx) NextVoucherSeq(ctx context.Context, companyID string, vt model.VoucherType, year int) (int, error) {
	seq := voucherSeqRow{CompanyID: companyID, Type: string(vt), Year: year}
	// The upsert takes the row's exclusive lock whether or not it inserted,
	// so concurrent callers queue on one record.
	err := t.q(ctx).Clauses(clause.OnConflict{
		DoUpdates: clause.Assignments(map[string]any{"last_seq": gorm.Expr("last_seq")}),
	}).Create(&seq).Error
	if err != nil {
		return 0, fmt.Errorf("next voucher seq: %w", err)
	}
	scope := func() *gorm.DB {
		return t.q(ctx).Where("company_id = ? AND type = ? AND year = ?", companyID, string(vt), year)
	}
	if err := scope().Clauses(forUpdate()).Take(&seq).Error; err != nil {
		return 0, fmt.Errorf("next voucher seq: %w", err)
	}

	last := seq.LastSeq
	if last == 0 {
		// Vouchers numbered before the sequence row existed.
		err := scope().Model(&voucherRow{}).
			Select("COALESCE(MAX(seq), 0)").
			Scan(&last).Error
		if err != nil {
			return 0, fmt.Errorf("next voucher seq: %w", err)
		}
	}

	next := last + 1
	err = scope().Model(&voucherSeqRow{}).Update("last_seq", next).Error
	if err != nil {
		return 0, fmt.Errorf("next voucher seq: %w", err)
	}
	return next, nil
}

func (t *tx) InsertVoucher(ctx context.Context, v model.Voucher) error {
	row := toVoucherRow(v)
	if err := t.q(ctx).Create(&row).Error; err != nil {
		if isDuplicate(err) {
			return fmt.Errorf("voucher %s: %w", v.VoucherNo, store.ErrDuplicate)
		}
		return fmt.Errorf("insert voucher %s: %w", v.VoucherNo, err)
	}
	return nil
}

func (t *tx) ReplaceDraft(ctx context.Context, v model.Voucher) error {
	row := toVoucherRow(v)
	res := t.q(ctx).Model(&voucherRow{}).
		Where("id = ? AND company_id = ? AND status = ?", v.ID, v.CompanyID, string(model.StatusDraft)).
		Updates(map[string]any{
			"date":       row.Date,
			"year":       row.Year,
			"narration":  row.Narration,
			"project_id": row.ProjectID,
			"reference":  row.Reference,
		})
	if res.Error != nil {
		if isDuplicate(res.Error) {
			return fmt.Errorf("voucher %s: %w", v.ID, store.ErrDuplicate)
		}
		return fmt.Errorf("update draft %s: %w", v.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return t.missOrConflict(ctx, v.CompanyID, v.ID)
	}

	if err := t.q(ctx).Where("voucher_id = ?", v.ID).Delete(&voucherLineRow{}).Error; err != nil {
		return fmt.Errorf("delete lines of %s: %w", v.ID, err)
	}
	if len(row.Lines) == 0 {
		return nil
	}
	if err := t.q(ctx).Create(&row.Lines).Error; err != nil {
		return fmt.Errorf("insert lines of %s: %w", v.ID, err)
	}
	return nil
}

func (t *tx) UpdateVoucherStatus(ctx context.Context, companyID, voucherID string, change store.StatusChange) error {
	updates := map[string]any{"status": string(change.To)}
	if change.PostedAt != nil {
		updates["posted_at"] = *change.PostedAt
		updates["posted_by_user_id"] = change.PostedByUserID
	}
	if change.ReversedByID != "" {
		updates["reversed_by_id"] = change.ReversedByID
	}

	res := t.q(ctx).Model(&voucherRow{}).
		Where("id = ? AND company_id = ? AND status = ?", voucherID, companyID, string(change.From)).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update status of %s: %w", voucherID, res.Error)
	}
	if res.RowsAffected == 0 {
		return t.missOrConflict(ctx, companyID, voucherID)
	}
	return nil
}

// missOrConflict tells a missing voucher from one whose guard no longer holds.
func (t *tx) missOrConflict(ctx context.Context, companyID, voucherID string) error {
	var count int64
	err := t.q(ctx).Model(&voucherRow{}).
		Where("id = ? AND company_id = ?", voucherID, companyID).
		Count(&count).Error
	if err != nil {
		return fmt.Errorf("check voucher %s: %w", voucherID, err)
	}
	if count == 0 {
		return fmt.Errorf("voucher %s: %w", voucherID, store.ErrNotFound)
	}
	return fmt.Errorf("voucher %s: %w", voucherID, store.ErrConflict)
}

func (t *tx) LockPurchase(ctx context.Context, companyID, purchaseID string) (model.Purchase, error) {
	var row purchaseRow
	err := t.q(ctx).Clauses(forUpdate()).
		Where("id = ? AND company_id = ?", purchaseID, companyID).
		Take(&row).Error
	if err != nil {
		return model.Purchase{}, notFound(err, "purchase", purchaseID)
	}
	if err := t.q(ctx).Where("purchase_id = ?", row.ID).Order("position").Find(&row.Lines).Error; err != nil {
		return model.Purchase{}, fmt.Errorf("load lines of purchase %s: %w", purchaseID, err)
	}
	return row.model(), nil
}

func (t *tx) LinkPurchaseVoucher(ctx context.Context, companyID, purchaseID, voucherID string) error {
	res := t.q(ctx).Model(&purchaseRow{}).
		Where("id = ? AND company_id = ? AND (voucher_id IS NULL OR voucher_id = '')", purchaseID, companyID).
		Update("voucher_id", voucherID)
	if res.Error != nil {
		return fmt.Errorf("link purchase %s: %w", purchaseID, res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := t.q(ctx).Model(&purchaseRow{}).
		Where("id = ? AND company_id = ?", purchaseID, companyID).
		Count(&count).Error; err != nil {
		return fmt.Errorf("check purchase %s: %w", purchaseID, err)
	}
	if count == 0 {
		return fmt.Errorf("purchase %s: %w", purchaseID, store.ErrNotFound)
	}
	return fmt.Errorf("purchase %s already linked: %w", purchaseID, store.ErrConflict)
}

// SaveAccount updates by id and inserts when no row matched. gorm's Save
// would fall back to ON DUPLICATE KEY UPDATE and silently overwrite the
// account that already holds the code.
func (t *tx) SaveAccount(ctx context.Context, a model.Account) error {
	row := toAccountRow(a)
	res := t.q(ctx).Select("*").Where("id = ?", row.ID).Updates(&row)
	if res.Error == nil && res.RowsAffected == 0 {
		res = t.q(ctx).Create(&row)
	}
	if res.Error != nil {
		if isDuplicate(res.Error) {
			return fmt.Errorf("account code %s: %w", a.Code, store.ErrDuplicate)
		}
		return fmt.Errorf("save account %s: %w", a.Code, res.Error)
	}
	return nil
}

func (t *tx) SaveProduct(ctx context.Context, p model.Product) error {
	row := toProductRow(p)
	if err := t.q(ctx).Save(&row).Error; err != nil {
		return fmt.Errorf("save product %s: %w", p.ID, err)
	}
	return nil
}

func (t *tx) SavePurchase(ctx context.Context, p model.Purchase) error {
	row := toPurchaseRow(p)
	if err := t.q(ctx).Omit("Lines").Save(&row).Error; err != nil {
		return fmt.Errorf("save purchase %s: %w", p.PurchaseNo, err)
	}
	if err := t.q(ctx).Where("purchase_id = ?", p.ID).Delete(&purchaseLineRow{}).Error; err != nil {
		return fmt.Errorf("delete lines of purchase %s: %w", p.PurchaseNo, err)
	}
	if len(row.Lines) == 0 {
		return nil
	}
	if err := t.q(ctx).Create(&row.Lines).Error; err != nil {
		return fmt.Errorf("insert lines of purchase %s: %w", p.PurchaseNo, err)
	}
	return nil
}
