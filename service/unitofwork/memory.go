package unitofwork

import (
	"context"

	"allocation/adapters/readmodel"
	"allocation/adapters/repository"
	"allocation/domain"
)

// MemoryFactory 进程内工作单元工厂，语义与 SQL 实现一致
type MemoryFactory struct {
	Store *repository.MemoryStore
	View  *readmodel.MemoryView
}

// NewMemoryFactory 创建带空存储的工厂
func NewMemoryFactory() *MemoryFactory {
	return &MemoryFactory{Store: repository.NewMemoryStore(), View: readmodel.NewMemoryView()}
}

func (f *MemoryFactory) Begin(ctx context.Context) (IUnitOfWork, error) {
	session := f.Store.Session()
	tracker := repository.NewTracker()
	return &memoryUnitOfWork{
		session:  session,
		writer:   f.View.Session(),
		tracker:  tracker,
		products: repository.NewTrackingRepository(session, tracker),
	}, nil
}

type memoryUnitOfWork struct {
	session  *repository.MemorySession
	writer   *readmodel.MemoryWriter
	tracker  *repository.Tracker
	products *repository.TrackingRepository
}

func (u *memoryUnitOfWork) Products() repository.IProductRepository { return u.products }
func (u *memoryUnitOfWork) Allocations() readmodel.IWriter          { return u.writer }
func (u *memoryUnitOfWork) Seen() *repository.Tracker               { return u.tracker }

func (u *memoryUnitOfWork) Commit(ctx context.Context) error {
	if err := u.products.Flush(ctx); err != nil {
		return err
	}
	if err := u.session.Commit(); err != nil {
		u.session.Discard()
		u.writer.Discard()
		return err
	}
	u.writer.Commit()
	u.tracker.MarkPersisted()
	return nil
}

func (u *memoryUnitOfWork) Rollback(ctx context.Context) error {
	u.session.Discard()
	u.writer.Discard()
	return nil
}

func (u *memoryUnitOfWork) CollectNewMessages() []domain.Message {
	return collect(u.tracker)
}
