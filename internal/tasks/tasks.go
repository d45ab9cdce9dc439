package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // register PNG for image.Decode
	"io"
	"log"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/hibiken/asynq"
	"github.com/nfnt/resize"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"rentsafi/server/internal/config"
	"rentsafi/server/internal/email"
	"rentsafi/server/internal/models"
	"rentsafi/server/internal/services"
	"rentsafi/server/internal/storage"
)

// Task types routed through Asynq queues.
const (
	TypeImageProcess  = "image:process"
	TypeMessageNotify = "message:notify"
)

// --- Task Client (Enqueuing tasks) ---

func NewClient(rdb *redis.Client) *asynq.Client {
	clientOpt := asynq.RedisClientOpt{
		Addr:     rdb.Options().Addr,
		Password: rdb.Options().Password,
		DB:       rdb.Options().DB,
	}
	return asynq.NewClient(clientOpt)
}

// --- Task Server (Processing tasks) ---

// TaskProcessor handles the processing of tasks.
// It holds dependencies needed by task handlers.
type TaskProcessor struct {
	cfg             *config.Config
	emailSender     email.Sender
	storageService  storage.IS3Storage
	propertyService services.IPropertyService
	userService     services.IUserService
	s3Client        *s3.Client
}

func NewTaskProcessor(
	cfg *config.Config,
	emailSender email.Sender,
	storageService storage.IS3Storage,
	propertyService services.IPropertyService,
	userService services.IUserService,
	s3Client *s3.Client,
) *TaskProcessor {
	return &TaskProcessor{
		cfg:             cfg,
		emailSender:     emailSender,
		storageService:  storageService,
		propertyService: propertyService,
		userService:     userService,
		s3Client:        s3Client,
	}
}

// SetupServer configures an Asynq server and its handler mux for the
// requested worker modes. Returns nil when no worker mode is enabled.
// The caller runs the server (srv.Run blocks).
func SetupServer(rdb *redis.Client, processor *TaskProcessor, isImageWorker bool, isBgWorker bool) (*asynq.Server, *asynq.ServeMux) {
	serverOpt := asynq.RedisClientOpt{
		Addr:     rdb.Options().Addr,
		Password: rdb.Options().Password,
		DB:       rdb.Options().DB,
	}

	srv := asynq.NewServer(
		serverOpt,
		asynq.Config{
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
				"images":   5,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Printf("[Asynq Error] Task Type: %s, Payload: %s, Error: %v", task.Type(), string(task.Payload()), err)
			}),
		},
	)

	mux := asynq.NewServeMux()

	if isBgWorker {
		mux.HandleFunc(TypeMessageNotify, processor.HandleMessageNotifyTask)
		log.Println("Registered background task handlers.")
	}

	if isImageWorker {
		mux.HandleFunc(TypeImageProcess, processor.HandleImageProcessTask)
		log.Println("Registered image processing task handlers.")
	}

	if !isBgWorker && !isImageWorker {
		log.Println("Running in API mode, no task server started.")
		return nil, nil
	}

	return srv, mux
}

// --- Task Handlers ---

// ImageTaskPayload carries the raw upload key and owning property for
// the image processing task.
type ImageTaskPayload struct {
	S3Key      string `json:"s3_key"`
	PropertyID string `json:"property_id"`
}

// NewImageProcessTask builds an Asynq task for the images queue.
func NewImageProcessTask(s3Key string, propertyID primitive.ObjectID) (*asynq.Task, error) {
	payload, err := json.Marshal(ImageTaskPayload{S3Key: s3Key, PropertyID: propertyID.Hex()})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal image task payload: %w", err)
	}
	return asynq.NewTask(TypeImageProcess, payload, asynq.Queue("images")), nil
}

// HandleImageProcessTask downloads a raw upload from S3, validates and
// resizes it, stores the processed copy, and attaches it to the property.
func (p *TaskProcessor) HandleImageProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload ImageTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal image task payload: %v: %w", err, asynq.SkipRetry)
	}

	propertyID, err := primitive.ObjectIDFromHex(payload.PropertyID)
	if err != nil {
		log.Printf("Invalid PropertyID in image task payload: %s", payload.PropertyID)
		return fmt.Errorf("invalid property ID in payload: %w", asynq.SkipRetry)
	}

	log.Printf("Processing image task: Key=%s, PropertyID=%s", payload.S3Key, payload.PropertyID)

	getObjectOutput, err := p.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.cfg.AwsS3Bucket),
		Key:    aws.String(payload.S3Key),
	})
	if err != nil {
		log.Printf("Error getting object %s from S3: %v", payload.S3Key, err)
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			log.Printf("S3 object %s not found, likely upload failed or key incorrect.", payload.S3Key)
			return fmt.Errorf("s3 object not found: %w", asynq.SkipRetry)
		}
		return fmt.Errorf("failed to download image from S3: %w", err)
	}
	defer getObjectOutput.Body.Close()

	imgData, err := io.ReadAll(getObjectOutput.Body)
	if err != nil {
		log.Printf("Error reading image object body for key %s: %v", payload.S3Key, err)
		return fmt.Errorf("failed to read image data: %w", err)
	}

	// Check initial size before decoding (more efficient)
	maxSizeBytes := int64(p.cfg.ImageMaxSizeMB) * 1024 * 1024
	if int64(len(imgData)) > maxSizeBytes {
		log.Printf("Image %s exceeds max size (%d > %d bytes). Skipping.", payload.S3Key, len(imgData), maxSizeBytes)
		return fmt.Errorf("image exceeds max size: %w", asynq.SkipRetry)
	}

	img, format, err := image.Decode(bytes.NewReader(imgData))
	if err != nil {
		log.Printf("Error decoding image for key %s: %v", payload.S3Key, err)
		return fmt.Errorf("unsupported image format or corrupt image: %w", asynq.SkipRetry)
	}
	log.Printf("Decoded image %s, format: %s, size: %dx%d", payload.S3Key, format, img.Bounds().Dx(), img.Bounds().Dy())

	maxWidth := uint(p.cfg.ImageMaxDimension)
	maxHeight := uint(p.cfg.ImageMaxDimension)
	needsResize := uint(img.Bounds().Dx()) > maxWidth || uint(img.Bounds().Dy()) > maxHeight

	processedImageKey := payload.S3Key
	var processedImageData []byte
	contentType := "image/jpeg"
	if getObjectOutput.ContentType != nil {
		contentType = *getObjectOutput.ContentType
	}

	if needsResize {
		log.Printf("Resizing image %s (original: %dx%d, max: %dx%d)", payload.S3Key, img.Bounds().Dx(), img.Bounds().Dy(), maxWidth, maxHeight)
		resizedImg := resize.Thumbnail(maxWidth, maxHeight, img, resize.Lanczos3)
		var buf bytes.Buffer
		err = jpeg.Encode(&buf, resizedImg, &jpeg.Options{Quality: 85})
		if err != nil {
			log.Printf("Error encoding resized image %s: %v", payload.S3Key, err)
			return fmt.Errorf("failed to re-encode resized image: %w", err)
		}
		processedImageData = buf.Bytes()
		contentType = "image/jpeg"
		log.Printf("Resized image %s to %dx%d", payload.S3Key, resizedImg.Bounds().Dx(), resizedImg.Bounds().Dy())

		if int64(len(processedImageData)) > maxSizeBytes {
			log.Printf("Resized image %s still exceeds max size (%d > %d bytes). Skipping.", payload.S3Key, len(processedImageData), maxSizeBytes)
			return fmt.Errorf("resized image still exceeds max size: %w", asynq.SkipRetry)
		}
	} else {
		processedImageData = imgData
	}

	_, err = p.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.cfg.AwsS3Bucket),
		Key:         aws.String(processedImageKey),
		Body:        bytes.NewReader(processedImageData),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		log.Printf("Error uploading processed image %s to S3: %v", processedImageKey, err)
		return fmt.Errorf("failed to upload processed image: %w", err)
	}

	err = p.propertyService.AddImage(ctx, propertyID, models.PropertyImage{
		URL:       p.storageService.PublicURL(processedImageKey),
		StorageID: processedImageKey,
	})
	if err != nil {
		log.Printf("Error adding image key %s to property %s: %v", processedImageKey, payload.PropertyID, err)
		return fmt.Errorf("failed to update property with processed image: %w", err)
	}

	log.Printf("Image task processed successfully: Key=%s, PropertyID=%s", processedImageKey, payload.PropertyID)
	return nil
}

// MessageNotifyPayload carries everything the notification email needs,
// so the handler does not have to re-read the message document.
type MessageNotifyPayload struct {
	ReceiverID    string `json:"receiver_id"`
	SenderName    string `json:"sender_name"`
	PropertyTitle string `json:"property_title"`
	Preview       string `json:"preview"`
}

// NewMessageNotifyTask builds an Asynq task for the default queue.
func NewMessageNotifyTask(receiverID primitive.ObjectID, senderName, propertyTitle, preview string) (*asynq.Task, error) {
	payload, err := json.Marshal(MessageNotifyPayload{
		ReceiverID:    receiverID.Hex(),
		SenderName:    senderName,
		PropertyTitle: propertyTitle,
		Preview:       preview,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message notify payload: %w", err)
	}
	return asynq.NewTask(TypeMessageNotify, payload, asynq.Queue("default")), nil
}

// HandleMessageNotifyTask emails a user about a new message they received.
func (p *TaskProcessor) HandleMessageNotifyTask(ctx context.Context, t *asynq.Task) error {
	var payload MessageNotifyPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal message notify payload: %v: %w", err, asynq.SkipRetry)
	}

	receiverID, err := primitive.ObjectIDFromHex(payload.ReceiverID)
	if err != nil {
		log.Printf("Invalid ReceiverID in notify task payload: %s", payload.ReceiverID)
		return fmt.Errorf("invalid receiver ID in payload: %w", asynq.SkipRetry)
	}

	receiver, err := p.userService.FindByID(ctx, receiverID)
	if err != nil {
		log.Printf("Error fetching receiver %s for notify task: %v", payload.ReceiverID, err)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return fmt.Errorf("receiver not found: %w", asynq.SkipRetry)
		}
		return err
	}

	subject := fmt.Sprintf("%s: new message from %s", p.cfg.AppName, payload.SenderName)
	body := fmt.Sprintf("Hi %s,\n\n%s sent you a message about %q:\n\n%s\n\nLog in to %s to reply.\n",
		receiver.Name, payload.SenderName, payload.PropertyTitle, payload.Preview, p.cfg.AppName)

	rawMessage := email.BuildMessage(p.cfg.SmtpFromAddress, []string{receiver.Email}, subject, body)
	if err := p.emailSender.Send(ctx, []string{receiver.Email}, subject, rawMessage); err != nil {
		log.Printf("Error sending notification email to %s: %v", receiver.Email, err)
		return fmt.Errorf("failed to send notification email: %w", err)
	}

	log.Printf("Message notification sent: To=%s", receiver.Email)
	return nil
}
