package web

import (
	"errors"

	"github.com/flowdeck-io/flowdeck/pkg/flows"
	"github.com/flowdeck-io/flowdeck/pkg/registry"
	"github.com/flowdeck-io/flowdeck/pkg/tables"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func unauthorized(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(401).
		WithInstance(c.Path()).
		WithType("unauthorized").
		WithDetail(detail)

	return c.Status(fiber.StatusUnauthorized).JSON(problem)
}

func forbidden(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(403).
		WithInstance(c.Path()).
		WithType("forbidden").
		WithDetail(detail)

	return c.Status(fiber.StatusForbidden).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func conflict(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(409).
		WithInstance(c.Path()).
		WithType("conflict").
		WithDetail(detail)

	return c.Status(fiber.StatusConflict).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleDomainError maps domain errors onto problem responses.
func handleDomainError(c fiber.Ctx, err error) error {
	var notFoundErr *registry.NotFoundError

	switch {
	case errors.Is(err, flows.ErrFlowNotFound):
		return notFound(c, "flow not found")

	case errors.Is(err, tables.ErrTableNotFound):
		return notFound(c, "table not found")

	case errors.Is(err, tables.ErrRecordNotFound):
		return notFound(c, "record not found")

	case errors.As(err, &notFoundErr):
		return notFound(c, err.Error())

	case errors.Is(err, flows.ErrFlowUnauthorized), errors.Is(err, tables.ErrUnauthorized):
		return forbidden(c, err.Error())

	case errors.Is(err, tables.ErrDuplicateValue):
		return conflict(c, err.Error())

	case errors.Is(err, tables.ErrMissingRequired),
		errors.Is(err, flows.ErrFlowNotExecutable),
		errors.Is(err, flows.ErrInvalidCallback):
		return badRequest(c, err.Error())

	default:
		return internalError(c, err)
	}
}
