package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/tirebot/internal/catalog"
	"github.com/mmeshcher/tirebot/internal/model"
)

const availableClause = `(stock_quantity > 0 OR is_overstock)`

const productColumns = `id, sku, brand, model, width, height, diameter, price_retail, stock_quantity, is_overstock, discount_percent`

var _ catalog.Catalog = (*PostgresRepository)(nil)

// DistinctWidths возвращает доступные ширины по возрастанию с числом моделей.
func (r *PostgresRepository) DistinctWidths(ctx context.Context, f catalog.Filter) ([]catalog.Option, error) {
	q, args := optionsQuery("width", f)
	return r.queryOptions(ctx, q, args...)
}

// DistinctHeights возвращает доступные высоты для ширины.
func (r *PostgresRepository) DistinctHeights(ctx context.Context, width int, f catalog.Filter) ([]catalog.Option, error) {
	q, args := optionsQuery("height", f, width)
	return r.queryOptions(ctx, q, args...)
}

// DistinctDiameters возвращает доступные диаметры для ширины и высоты.
func (r *PostgresRepository) DistinctDiameters(ctx context.Context, width, height int, f catalog.Filter) ([]catalog.Option, error) {
	q, args := optionsQuery("diameter", f, width, height)
	return r.queryOptions(ctx, q, args...)
}

// optionsQuery строит запрос значений столбца column. Предыдущие размеры
// задаются по порядку: ширина, затем высота.
func optionsQuery(column string, f catalog.Filter, fixed ...int) (string, []any) {
	var where []string
	var args []any
	for i, v := range fixed {
		args = append(args, v)
		where = append(where, fmt.Sprintf("%s = $%d", [...]string{"width", "height"}[i], len(args)))
	}
	if f.InStockOnly {
		where = append(where, availableClause)
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(column)
	b.WriteString(", COUNT(DISTINCT model) FROM products")
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	b.WriteString(" GROUP BY ")
	b.WriteString(column)
	b.WriteString(" ORDER BY ")
	b.WriteString(column)
	return b.String(), args
}

func (r *PostgresRepository) queryOptions(ctx context.Context, q string, args ...any) ([]catalog.Option, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("select options: %w", err)
	}
	defer rows.Close()

	var res []catalog.Option
	for rows.Next() {
		var o catalog.Option
		if err := rows.Scan(&o.Value, &o.Models); err != nil {
			return nil, fmt.Errorf("scan option: %w", err)
		}
		res = append(res, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// Search возвращает товары по критериям: сначала сток, затем по возрастанию цены.
func (r *PostgresRepository) Search(ctx context.Context, c catalog.Criteria) ([]model.Product, error) {
	q, args := searchQuery(c)

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("search products: %w", err)
	}
	defer rows.Close()

	var res []model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

func searchQuery(c catalog.Criteria) (string, []any) {
	var where []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, strings.Replace(cond, "?", "$"+strconv.Itoa(len(args)), 1))
	}

	if c.Width != nil {
		add("width = ?", *c.Width)
	}
	if c.Height != nil {
		add("height = ?", *c.Height)
	}
	if c.Diameter != nil {
		add("diameter = ?", *c.Diameter)
	}
	if c.Brand != "" {
		add("brand ILIKE ?", "%"+escapeLike(c.Brand)+"%")
	}
	if c.MinPrice != nil {
		add("price_retail >= ?", *c.MinPrice)
	}
	if c.MaxPrice != nil {
		add("price_retail <= ?", *c.MaxPrice)
	}
	if c.InStock {
		where = append(where, availableClause)
	}

	q := "SELECT " + productColumns + " FROM products"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY is_overstock DESC, price_retail ASC, id ASC"
	return q, args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// FindByID возвращает товар по идентификатору.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*model.Product, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`,
		id,
	)

	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrProductNotFound
		}
		return nil, err
	}
	return p, nil
}

// Count возвращает число товаров в каталоге.
func (r *PostgresRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM products`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return n, nil
}

func scanProduct(row pgx.Row) (*model.Product, error) {
	var p model.Product
	err := row.Scan(&p.ID, &p.SKU, &p.Brand, &p.Model, &p.Width, &p.Height, &p.Diameter,
		&p.PriceRetail, &p.StockQuantity, &p.IsOverstock, &p.DiscountPercent)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan product: %w", err)
	}
	return &p, nil
}
