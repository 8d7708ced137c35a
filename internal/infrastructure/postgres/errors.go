package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jhoicas/gestion-pyme/internal/domain"
)

// Códigos SQLSTATE que se traducen a errores de dominio.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
	codeInsufficientPriv    = "42501"
	codeSerializationFail   = "40001"
	codeDeadlock            = "40P01"
	codeNoDataFound         = "P0002"
	codeInvalidText         = "22P02"
)

// Restricción que protege stock >= 0.
const stockCheckConstraint = "products_stock_nonnegative"

// mapError clasifica err por su código SQLSTATE y anota la operación.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == codeUniqueViolation:
			return domain.E(domain.KindConflict, op, fmt.Errorf("%w: %w", domain.ErrDuplicate, err))
		case pgErr.Code == codeForeignKeyViolation:
			return domain.E(domain.KindConflict, op, fmt.Errorf("%w: %w", domain.ErrConflict, err))
		case pgErr.Code == codeCheckViolation && pgErr.ConstraintName == stockCheckConstraint:
			return domain.E(domain.KindConflict, op, fmt.Errorf("%w: %w", domain.ErrInsufficientStock, err))
		case pgErr.Code == codeCheckViolation:
			return domain.E(domain.KindValidation, op, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err))
		case pgErr.Code == codeInvalidText:
			return domain.E(domain.KindValidation, op, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err))
		case pgErr.Code == codeInsufficientPriv:
			return domain.E(domain.KindPermissionDenied, op, fmt.Errorf("%w: %w", domain.ErrForbidden, err))
		case pgErr.Code == codeSerializationFail, pgErr.Code == codeDeadlock:
			return domain.E(domain.KindConflict, op, fmt.Errorf("%w: %w", domain.ErrConflict, err))
		case pgErr.Code == codeNoDataFound:
			return domain.E(domain.KindNotFound, op, fmt.Errorf("%w: %w", domain.ErrNotFound, err))
		case strings.HasPrefix(pgErr.Code, "08"):
			return domain.E(domain.KindUnavailable, op, fmt.Errorf("%w: %w", domain.ErrUnavailable, err))
		}
	}
	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) {
		return domain.E(domain.KindUnavailable, op, fmt.Errorf("%w: %w", domain.ErrUnavailable, err))
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return domain.E(domain.KindUnavailable, op, fmt.Errorf("%w: %w", domain.ErrUnavailable, err))
	}
	return domain.E(domain.KindInternal, op, err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation
}

func isNoDataFound(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeNoDataFound
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
