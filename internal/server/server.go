package server

import (
	"errors"
	"path"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/mansoorceksport/imgcrop/internal/config"
	"github.com/mansoorceksport/imgcrop/internal/domain"
	"github.com/mansoorceksport/imgcrop/internal/handler"
	"github.com/mansoorceksport/imgcrop/internal/infrastructure/codec"
	"github.com/mansoorceksport/imgcrop/internal/middleware"
	"github.com/mansoorceksport/imgcrop/internal/repository"
	"github.com/mansoorceksport/imgcrop/internal/service"
	"github.com/mansoorceksport/imgcrop/internal/telemetry"
	"github.com/spf13/afero"
)

// AppDependencies holds the dependencies required to start the application
type AppDependencies struct {
	Config *config.Config
	FS     afero.Fs

	// Optional
	ReplayCache domain.ReplayCache
	Mirror      domain.FileMirror
	Namer       service.Namer
	Logger      *log.Logger
}

// NewApp creates and configures the Fiber application with the given dependencies
func NewApp(deps AppDependencies) *fiber.App {
	cfg := deps.Config
	logg := deps.Logger
	if logg == nil {
		logg = log.Default()
	}
	fs := deps.FS
	if fs == nil {
		fs = afero.NewOsFs()
	}

	// Storage
	paths := service.NewPathResolver(cfg.Storage)
	files := repository.NewLocalFileStore(fs)

	// Services
	validator := service.NewUploadValidator(cfg.Storage.MultiFilePolicy)
	lifecycle := service.NewLifecycleService(service.LifecycleDeps{
		Paths:     paths,
		Files:     files,
		Codec:     codec.New(),
		Namer:     deps.Namer,
		Validator: validator,
		Mirror:    deps.Mirror,
		Logger:    logg.WithPrefix("lifecycle"),

		MaxImageBytes: cfg.Server.MaxUploadSizeMB * 1024 * 1024,
	})

	fileHandler := handler.NewFileHandler(lifecycle, validator, cfg.Server.PublicHost, cfg.Server.MaxUploadSizeMB, logg.WithPrefix("http"))

	app := fiber.New(fiber.Config{
		AppName:      "Image File Server",
		BodyLimit:    BodyLimit(cfg.Server.MaxUploadSizeMB),
		ErrorHandler: errorHandler(logg),
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, " + middleware.HeaderCorrelationID,
		AllowMethods: "GET, POST, OPTIONS",
	}))
	app.Use(telemetry.FiberMiddleware("/health"))
	if deps.ReplayCache != nil {
		app.Use(middleware.Idempotency(deps.ReplayCache, cfg.Redis.IdempotencyTTL, logg.WithPrefix("idempotency")))
	}

	app.Get("/", fileHandler.Index)
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"service": "image-file-server",
		})
	})

	app.Post("/upload", fileHandler.Upload)
	app.Post("/crop", fileHandler.Crop)
	app.Post("/save", fileHandler.Save)
	app.Post("/fileUpload", fileHandler.FileUpload)
	app.Post("/streamUploadImage", fileHandler.StreamUploadImage)

	// Temp and saved images are served back under the URLs the API returns.
	// Opaque uploads stay private.
	for _, dir := range []struct{ route, root string }{
		{cfg.Storage.TempDir, paths.TempDir()},
		{cfg.Storage.ContextsDir, paths.ContextsDir()},
	} {
		app.Use(path.Join("/", dir.route), filesystem.New(filesystem.Config{
			Root:   afero.NewHttpFs(afero.NewBasePathFs(fs, dir.root)),
			Browse: false,
		}))
	}

	return app
}

// errorHandler renders unhandled errors in the same envelope the routes use
// BodyLimit returns the request size that still admits a base64 image of maxMB
// megabytes, plus headroom for the JSON or multipart framing around it.
// The decoded size is checked again by the lifecycle service.
func BodyLimit(maxMB int64) int {
	const framing = 64 * 1024
	raw := maxMB * 1024 * 1024
	return int(4*((raw+2)/3)) + framing
}

func errorHandler(logg *log.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		var e *fiber.Error
		if errors.As(err, &e) {
			code = e.Code
		}
		if code >= fiber.StatusInternalServerError {
			logg.Error("unhandled error", "method", c.Method(), "path", c.Path(), "err", err)
		}
		return c.Status(code).JSON(domain.URLFailure(domain.MsgError))
	}
}
