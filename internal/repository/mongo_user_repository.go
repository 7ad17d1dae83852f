package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/iliyamo/videotube-api/internal/model"
	"github.com/iliyamo/videotube-api/internal/utils"
)

// userDocument mirrors a document in the users collection.
type userDocument struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Username     string             `bson:"username"`
	Email        string             `bson:"email"`
	FullName     string             `bson:"fullName"`
	Avatar       string             `bson:"avatar"`
	CoverImage   string             `bson:"coverImage"`
	Password     string             `bson:"password,omitempty"`
	RefreshToken string             `bson:"refreshToken,omitempty"`
	CreatedAt    time.Time          `bson:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt"`
}

func (d userDocument) toModel() model.User {
	return model.User{
		ID:               d.ID.Hex(),
		Username:         d.Username,
		Email:            d.Email,
		FullName:         d.FullName,
		Avatar:           d.Avatar,
		CoverImage:       d.CoverImage,
		PasswordHash:     d.Password,
		RefreshTokenHash: d.RefreshToken,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
}

// profileProjection drops the secret and session fields.
var profileProjection = bson.D{{Key: "password", Value: 0}, {Key: "refreshToken", Value: 0}}

type MongoUserRepo struct {
	Coll *mongo.Collection
	cost int
}

func NewMongoUserRepo(coll *mongo.Collection, bcryptCost int) *MongoUserRepo {
	return &MongoUserRepo{Coll: coll, cost: bcryptCost}
}

// EnsureIndexes creates the unique username and email indexes the
// duplicate-registration guard relies on.
func (r *MongoUserRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.Coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true).SetName("uniq_username")},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetName("uniq_email")},
	})
	if err != nil {
		return fmt.Errorf("create user indexes: %w", err)
	}
	return nil
}

func (r *MongoUserRepo) FindByUsernameOrEmail(ctx context.Context, username, email string) (model.User, error) {
	username, email = normalizeIdentity(username, email)
	var or bson.A
	if username != "" {
		or = append(or, bson.D{{Key: "username", Value: username}})
	}
	if email != "" {
		or = append(or, bson.D{{Key: "email", Value: email}})
	}
	if len(or) == 0 {
		return model.User{}, ErrNotFound
	}
	return r.findOne(ctx, bson.D{{Key: "$or", Value: or}})
}

func (r *MongoUserRepo) FindByID(ctx context.Context, id string) (model.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return model.User{}, ErrNotFound
	}
	return r.findOne(ctx, bson.D{{Key: "_id", Value: oid}})
}

func (r *MongoUserRepo) FindProfileByID(ctx context.Context, id string) (model.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return model.User{}, ErrNotFound
	}
	return r.findOne(ctx, bson.D{{Key: "_id", Value: oid}}, options.FindOne().SetProjection(profileProjection))
}

func (r *MongoUserRepo) findOne(ctx context.Context, filter bson.D, opts ...*options.FindOneOptions) (model.User, error) {
	var doc userDocument
	if err := r.Coll.FindOne(ctx, filter, opts...).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return model.User{}, ErrNotFound
		}
		return model.User{}, err
	}
	return doc.toModel(), nil
}

func (r *MongoUserRepo) Create(ctx context.Context, nu model.NewUser) (string, error) {
	hash, err := utils.HashPassword(nu.Password, r.cost)
	if err != nil {
		return "", err
	}
	username, email := normalizeIdentity(nu.Username, nu.Email)
	now := time.Now().UTC()
	doc := userDocument{
		ID:         primitive.NewObjectID(),
		Username:   username,
		Email:      email,
		FullName:   nu.FullName,
		Avatar:     nu.Avatar,
		CoverImage: nu.CoverImage,
		Password:   hash,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if _, err := r.Coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", ErrDuplicate
		}
		return "", err
	}
	return doc.ID.Hex(), nil
}

func (r *MongoUserRepo) SetRefreshToken(ctx context.Context, id, tokenHash string) error {
	now := time.Now().UTC()
	update := bson.D{{Key: "$set", Value: bson.D{{Key: "refreshToken", Value: tokenHash}, {Key: "updatedAt", Value: now}}}}
	if tokenHash == "" {
		update = bson.D{
			{Key: "$set", Value: bson.D{{Key: "updatedAt", Value: now}}},
			{Key: "$unset", Value: bson.D{{Key: "refreshToken", Value: ""}}},
		}
	}
	return r.updateOne(ctx, id, nil, update)
}

func (r *MongoUserRepo) RotateRefreshToken(ctx context.Context, id, oldHash, newHash string) error {
	if oldHash == "" {
		return ErrNotFound
	}
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "refreshToken", Value: newHash},
		{Key: "updatedAt", Value: time.Now().UTC()},
	}}}
	return r.updateOne(ctx, id, bson.D{{Key: "refreshToken", Value: oldHash}}, update)
}

func (r *MongoUserRepo) UpdatePassword(ctx context.Context, id, password string) error {
	hash, err := utils.HashPassword(password, r.cost)
	if err != nil {
		return err
	}
	update := bson.D{
		{Key: "$set", Value: bson.D{{Key: "password", Value: hash}, {Key: "updatedAt", Value: time.Now().UTC()}}},
		{Key: "$unset", Value: bson.D{{Key: "refreshToken", Value: ""}}},
	}
	return r.updateOne(ctx, id, nil, update)
}

// updateOne applies update to the user with the given id and any extra
// filter conditions; zero matches is ErrNotFound.
func (r *MongoUserRepo) updateOne(ctx context.Context, id string, extra bson.D, update bson.D) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	filter := append(bson.D{{Key: "_id", Value: oid}}, extra...)
	res, err := r.Coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
