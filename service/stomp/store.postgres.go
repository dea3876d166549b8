package stomp

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/dbresolver"
)

type queueFrameRecord struct {
	Id          int64  `gorm:"primaryKey;autoIncrement"`
	Destination string `gorm:"index:idx_queue_frame_dest_seq,priority:1"`
	Seq         int64  `gorm:"index:idx_queue_frame_dest_seq,priority:2"`
	FrameData   []byte
	TimeCreated int `gorm:"autoCreateTime:milli"`
}

func (*queueFrameRecord) TableName() string {
	return "queue_frame"
}

// PostgresStore persists per destination frame backlogs in postgres via gorm.
// Writes and the reads that feed dispatch decisions stick to the sources;
// Size and Destinations may be served by replicas.
type PostgresStore struct {
	db *gorm.DB
}

var _ Store = new(PostgresStore)

func NewPostgresStore(sources []string, replicas []string) (*PostgresStore, error) {
	if len(sources) == 0 {
		return nil, errors.New("postgres store requires at least one source")
	}

	newLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             2000 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  true,
		},
	)
	db, err := gorm.Open(postgres.Open(sources[0]), &gorm.Config{
		Logger: newLogger,
	})
	if err != nil {
		return nil, err
	}
	var sourceDialectors []gorm.Dialector
	for _, v := range sources {
		sourceDialectors = append(sourceDialectors, postgres.Open(v))
	}
	var replicaDialectors []gorm.Dialector
	for _, v := range replicas {
		replicaDialectors = append(replicaDialectors, postgres.Open(v))
	}
	if err := db.Use(dbresolver.Register(dbresolver.Config{
		Sources:           sourceDialectors,
		Replicas:          replicaDialectors,
		Policy:            dbresolver.RandomPolicy{},
		TraceResolverMode: true,
	})); err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&queueFrameRecord{}); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Enqueue(destination string, frame *Frame) error {
	data, err := encodeFrameRecord(frame)
	if err != nil {
		return fmt.Errorf("encode frame for destination %s: %w", destination, err)
	}
	return s.db.Clauses(dbresolver.Write).Transaction(func(tx *gorm.DB) error {
		var seq int64
		r := tx.Raw(`
select coalesce(max(seq), 0) + 1 from queue_frame where destination = $1
`, destination).Scan(&seq)
		if r.Error != nil {
			return r.Error
		}
		rec := &queueFrameRecord{
			Destination: destination,
			Seq:         seq,
			FrameData:   data,
		}
		return tx.Create(rec).Error
	})
}

func (s *PostgresStore) Dequeue(destination string) (*Frame, error) {
	var frame *Frame
	err := s.db.Clauses(dbresolver.Write).Transaction(func(tx *gorm.DB) error {
		frame = nil
		rec := queueFrameRecord{}
		r := tx.Raw(`
select * from queue_frame where destination = $1 order by seq asc limit 1 for update
`, destination).Scan(&rec)
		if r.Error != nil {
			return r.Error
		}
		if r.RowsAffected <= 0 {
			return nil
		}
		if d := tx.Exec(`delete from queue_frame where id = $1`, rec.Id); d.Error != nil {
			return d.Error
		}
		f, err := decodeFrameRecord(rec.FrameData)
		if err != nil {
			return err
		}
		frame = f
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("dequeue from destination %s: %w", destination, err)
	}
	return frame, nil
}

func (s *PostgresStore) Requeue(destination string, frame *Frame) error {
	data, err := encodeFrameRecord(frame)
	if err != nil {
		return fmt.Errorf("encode frame for destination %s: %w", destination, err)
	}
	return s.db.Clauses(dbresolver.Write).Transaction(func(tx *gorm.DB) error {
		var seq int64
		r := tx.Raw(`
select coalesce(min(seq), 2) - 1 from queue_frame where destination = $1
`, destination).Scan(&seq)
		if r.Error != nil {
			return r.Error
		}
		rec := &queueFrameRecord{
			Destination: destination,
			Seq:         seq,
			FrameData:   data,
		}
		return tx.Create(rec).Error
	})
}

func (s *PostgresStore) HasFrames(destination string) (bool, error) {
	var count int64
	r := s.db.Clauses(dbresolver.Write).Raw(`
select count(*) from (select id from queue_frame where destination = $1 limit 1) t
`, destination).Scan(&count)
	if r.Error != nil {
		return false, r.Error
	}
	return count > 0, nil
}

func (s *PostgresStore) Size(destination string) (int, error) {
	var count int64
	r := s.db.Raw(`
select count(*) from queue_frame where destination = $1
`, destination).Scan(&count)
	if r.Error != nil {
		return 0, r.Error
	}
	return int(count), nil
}

func (s *PostgresStore) Destinations() ([]string, error) {
	var destinations []string
	r := s.db.Raw(`
select distinct destination from queue_frame
`).Scan(&destinations)
	if r.Error != nil {
		return nil, r.Error
	}
	return destinations, nil
}

func (s *PostgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
