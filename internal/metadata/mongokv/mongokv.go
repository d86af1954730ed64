// Пакет mongokv — адаптер metadata.KV поверх MongoDB.
//
// Документ: {_id: ключ, value: строка, expireAt: момент истечения}.
// TTL-индекс по expireAt удаляет документы фоновым процессом MongoDB
// (с задержкой до минуты), поэтому Get дополнительно фильтрует по expireAt.
package mongokv

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/bigkaa/flashshare/internal/metadata"
)

// CollectionName — коллекция с метаданными ссылок.
const CollectionName = "share_metadata"

const pingTimeout = 5 * time.Second

type document struct {
	Key      string    `bson:"_id"`
	Value    string    `bson:"value"`
	ExpireAt time.Time `bson:"expireAt"`
}

// KV — key-value поверх коллекции MongoDB.
type KV struct {
	client *mongo.Client
	coll   *mongo.Collection
	now    func() time.Time
}

// New создаёт адаптер поверх коллекции.
func New(coll *mongo.Collection) *KV {
	return &KV{client: coll.Database().Client(), coll: coll, now: time.Now}
}

// Open подключается к MongoDB, проверяет соединение и создаёт TTL-индекс.
func Open(ctx context.Context, uri, database string) (*KV, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("MongoDB недоступна: %w", err)
	}

	kv := New(client.Database(database).Collection(CollectionName))
	if err := kv.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return kv, nil
}

// EnsureIndexes создаёт TTL-индекс по expireAt.
func (k *KV) EnsureIndexes(ctx context.Context) error {
	_, err := k.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expireAt", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0).SetName("expireAt_ttl"),
	})
	if err != nil {
		return fmt.Errorf("ошибка создания TTL-индекса: %w", err)
	}
	return nil
}

// Get возвращает значение неистёкшего ключа.
func (k *KV) Get(ctx context.Context, key string) (string, bool, error) {
	var doc document
	err := k.coll.FindOne(ctx, bson.M{
		"_id":      key,
		"expireAt": bson.M{"$gt": k.now().UTC()},
	}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return doc.Value, true, nil
}

// Put сохраняет значение (upsert), срок хранения — now + ttl.
func (k *KV) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	doc := document{Key: key, Value: value, ExpireAt: k.now().UTC().Add(ttl)}
	_, err := k.coll.ReplaceOne(ctx, bson.M{"_id": key}, doc, options.Replace().SetUpsert(true))
	return err
}

// Delete удаляет ключ.
func (k *KV) Delete(ctx context.Context, key string) error {
	_, err := k.coll.DeleteOne(ctx, bson.M{"_id": key})
	return err
}

// Scan возвращает значения всех документов с префиксом ключа, включая
// истёкшие, но ещё не удалённые TTL-монитором.
func (k *KV) Scan(ctx context.Context, prefix string) ([]string, error) {
	filter := bson.M{"_id": bson.M{"$regex": "^" + regexp.QuoteMeta(prefix)}}
	cursor, err := k.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "expireAt", Value: 1}}))
	if err != nil {
		return nil, err
	}

	var docs []document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	values := make([]string, len(docs))
	for i, d := range docs {
		values[i] = d.Value
	}
	return values, nil
}

// Ping проверяет соединение.
func (k *KV) Ping(ctx context.Context) error {
	return k.client.Ping(ctx, readpref.Primary())
}

// Close отключает клиента.
func (k *KV) Close(ctx context.Context) error {
	return k.client.Disconnect(ctx)
}

var (
	_ metadata.ScanKV = (*KV)(nil)
	_ metadata.Pinger = (*KV)(nil)
)
