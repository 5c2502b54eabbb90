package controller

import (
	"strconv"

	"ai-bookchat-be/internal/dto"
	"ai-bookchat-be/internal/pkg/serverutils"
	"ai-bookchat-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IBookController interface {
	RegisterRoutes(r fiber.Router)
	Upload(ctx *fiber.Ctx) error
	List(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
	Delete(ctx *fiber.Ctx) error
	Process(ctx *fiber.Ctx) error
	Status(ctx *fiber.Ctx) error
	Query(ctx *fiber.Ctx) error
	ClearEmbeddings(ctx *fiber.Ctx) error
}

type bookController struct {
	bookService service.IBookService
}

func NewBookController(bookService service.IBookService) IBookController {
	return &bookController{
		bookService: bookService,
	}
}

func (c *bookController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/book/v1")
	h.Use(serverutils.JwtMiddleware)
	h.Post("", c.Upload)
	h.Get("", c.List)
	h.Get(":id", c.Show)
	h.Delete(":id", c.Delete)
	h.Post(":id/process", c.Process)
	h.Get(":id/status", c.Status)
	h.Post(":id/query", c.Query)
	h.Delete(":id/embeddings", c.ClearEmbeddings)
}

func bookID(ctx *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(ctx.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, serverutils.ErrInvalidID()
	}
	return id, nil
}

func (c *bookController) Upload(ctx *fiber.Ctx) error {
	userIdStr := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)

	var req dto.UploadBookRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.bookService.Create(ctx.Context(), userId, &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Book uploaded", res))
}

func (c *bookController) List(ctx *fiber.Ctx) error {
	userIdStr := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)

	res, err := c.bookService.List(ctx.Context(), userId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Books", res))
}

func (c *bookController) Show(ctx *fiber.Ctx) error {
	userIdStr := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)

	id, err := bookID(ctx)
	if err != nil {
		return err
	}

	res, err := c.bookService.Show(ctx.Context(), userId, id)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Book detail", res))
}

func (c *bookController) Delete(ctx *fiber.Ctx) error {
	userIdStr := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)

	id, err := bookID(ctx)
	if err != nil {
		return err
	}

	if err := c.bookService.Delete(ctx.Context(), userId, id); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Book deleted", nil))
}

func (c *bookController) Process(ctx *fiber.Ctx) error {
	userIdStr := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)

	id, err := bookID(ctx)
	if err != nil {
		return err
	}

	// Body is optional, an empty POST means a non-forced run.
	var req dto.ProcessBookRequest
	if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&req); err != nil {
			return err
		}
	}

	res, err := c.bookService.StartProcessing(ctx.Context(), userId, id, req.Force)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Processing requested", res))
}

func (c *bookController) Status(ctx *fiber.Ctx) error {
	userIdStr := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)

	id, err := bookID(ctx)
	if err != nil {
		return err
	}

	res, err := c.bookService.GetStatus(ctx.Context(), userId, id)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Book status", res))
}

func (c *bookController) Query(ctx *fiber.Ctx) error {
	userIdStr := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)

	id, err := bookID(ctx)
	if err != nil {
		return err
	}

	var req dto.QueryBookRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.bookService.Query(ctx.Context(), userId, id, &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Query results", res))
}

func (c *bookController) ClearEmbeddings(ctx *fiber.Ctx) error {
	userIdStr := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)

	id, err := bookID(ctx)
	if err != nil {
		return err
	}

	res, err := c.bookService.ClearEmbeddings(ctx.Context(), userId, id)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Embeddings cleared", res))
}
