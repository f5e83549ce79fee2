package pebble_service

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"wave-portal-client/models"

	"github.com/cockroachdb/pebble"
)

const (
	CollectionWaves       = "waves"        // 已见留言 key: MessageRecord.Key(), value: JSON
	CollectionSessionMeta = "session_meta" // 会话元数据：total_count 和缓存所属合约
)

const (
	metaKeyTotalCount = "total_count"
	metaKeyContract   = "contract"
)

// PebbleService 本地留言缓存：冷启动或 RPC 不可用时展示上次的数据
type PebbleService struct {
	collectionMgr *CollectionManager
	mu            sync.RWMutex
	path          string
	closed        bool
}

// Config Pebble 配置
type Config struct {
	DBPath string `yaml:"db_path" json:"db_path"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		DBPath: "./data/wave_pebble",
	}
}

// CollectionManager 每个集合一个独立的 pebble 实例
type CollectionManager struct {
	mu          sync.RWMutex
	collections map[string]*pebble.DB
	basePath    string
}

// NewCollectionManager 创建集合管理器
func NewCollectionManager(basePath string) *CollectionManager {
	return &CollectionManager{
		collections: make(map[string]*pebble.DB),
		basePath:    basePath,
	}
}

// GetCollection 获取集合，不存在时打开
func (cm *CollectionManager) GetCollection(collectionName string) (*pebble.DB, error) {
	cm.mu.RLock()
	if db, exists := cm.collections[collectionName]; exists {
		cm.mu.RUnlock()
		return db, nil
	}
	cm.mu.RUnlock()

	cm.mu.Lock()
	defer cm.mu.Unlock()

	// 双重检查，防止并发打开
	if db, exists := cm.collections[collectionName]; exists {
		return db, nil
	}

	dbPath := filepath.Join(cm.basePath, collectionName)
	// 单会话客户端，数据量很小
	opts := &pebble.Options{
		Cache:              pebble.NewCache(4 << 20),
		FormatMajorVersion: pebble.FormatNewest,
		MemTableSize:       4 << 20,
		MaxOpenFiles:       256,
	}

	db, err := pebble.Open(dbPath, opts)
	if err != nil {
		return nil, fmt.Errorf("打开集合 %s 失败: %w", collectionName, err)
	}

	cm.collections[collectionName] = db
	log.Printf("✅ Collection %s opened: %s", collectionName, dbPath)
	return db, nil
}

// CloseAll 关闭全部集合
func (cm *CollectionManager) CloseAll() error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	var errs []string
	for name, db := range cm.collections {
		if err := db.Close(); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", name, err))
		}
	}
	cm.collections = make(map[string]*pebble.DB)

	if len(errs) > 0 {
		return fmt.Errorf("关闭集合失败: %s", strings.Join(errs, "; "))
	}
	return nil
}

// NewPebbleService 创建缓存服务
func NewPebbleService(config *Config) *PebbleService {
	if config == nil {
		config = DefaultConfig()
	}
	return &PebbleService{
		path:          config.DBPath,
		collectionMgr: NewCollectionManager(config.DBPath),
	}
}

// Initialize 打开全部集合
func (ps *PebbleService) Initialize() error {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	abs, err := filepath.Abs(ps.path)
	if err != nil {
		return fmt.Errorf("获取数据库路径失败: %w", err)
	}
	log.Printf("🚀 Opening wave cache: %s", abs)
	ps.closed = false

	for _, name := range []string{CollectionWaves, CollectionSessionMeta} {
		if _, err := ps.collectionMgr.GetCollection(name); err != nil {
			return err
		}
	}
	return nil
}

// Close 关闭数据库
func (ps *PebbleService) Close() error {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	ps.closed = true
	if err := ps.collectionMgr.CloseAll(); err != nil {
		log.Printf("❌ Closing wave cache: %v", err)
		return err
	}
	log.Printf("🛑 Wave cache closed")
	return nil
}

// collection 调用方需持有 ps.mu
func (ps *PebbleService) collection(name string) (*pebble.DB, error) {
	if ps.closed {
		return nil, errors.New("wave cache is closed")
	}
	return ps.collectionMgr.GetCollection(name)
}

// SaveWaves 批量写入留言，已存在的覆盖（回执/事件来源会补全 txHash）
func (ps *PebbleService) SaveWaves(records []models.MessageRecord) error {
	if len(records) == 0 {
		return nil
	}
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	db, err := ps.collection(CollectionWaves)
	if err != nil {
		return err
	}

	batch := db.NewBatch()
	defer batch.Close()
	for _, r := range records {
		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("序列化留言失败: %w", err)
		}
		if err := batch.Set([]byte(r.Key()), data, nil); err != nil {
			return fmt.Errorf("写入批处理失败: %w", err)
		}
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("提交批处理失败: %w", err)
	}
	return nil
}

// IsKnownWave 是否已缓存
func (ps *PebbleService) IsKnownWave(key string) (bool, error) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	db, err := ps.collection(CollectionWaves)
	if err != nil {
		return false, err
	}
	_, closer, err := db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("查询留言失败: %w", err)
	}
	closer.Close()
	return true, nil
}

// LoadWaves 读取全部缓存留言，按时间排序
func (ps *PebbleService) LoadWaves() ([]models.MessageRecord, error) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	db, err := ps.collection(CollectionWaves)
	if err != nil {
		return nil, err
	}
	iter, err := db.NewIter(nil)
	if err != nil {
		return nil, fmt.Errorf("创建迭代器失败: %w", err)
	}
	defer iter.Close()

	var out []models.MessageRecord
	for iter.First(); iter.Valid(); iter.Next() {
		var r models.MessageRecord
		if err := json.Unmarshal(iter.Value(), &r); err != nil {
			log.Printf("⚠️ Skipping corrupt cached wave %x: %v", iter.Key(), err)
			continue
		}
		r.Source = models.RecordSourceCache
		out = append(out, r)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("迭代器错误: %w", err)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].SentAt.Before(out[j].SentAt) })
	return out, nil
}

// SaveTotalCount 只保存更大的值
func (ps *PebbleService) SaveTotalCount(count uint64) error {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	db, err := ps.collection(CollectionSessionMeta)
	if err != nil {
		return err
	}
	current, err := readCount(db)
	if err != nil {
		return err
	}
	if count <= current {
		return nil
	}
	return db.Set([]byte(metaKeyTotalCount), []byte(strconv.FormatUint(count, 10)), pebble.Sync)
}

// LoadTotalCount 上次见过的最大总数
func (ps *PebbleService) LoadTotalCount() (uint64, error) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	db, err := ps.collection(CollectionSessionMeta)
	if err != nil {
		return 0, err
	}
	return readCount(db)
}

func readCount(db *pebble.DB) (uint64, error) {
	value, err := readMeta(db, metaKeyTotalCount)
	if err != nil || value == "" {
		return 0, err
	}
	n, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("总数格式错误: %w", err)
	}
	return n, nil
}

// BindContract 缓存只属于一条链上的一个合约，配置换了就清空旧数据
func (ps *PebbleService) BindContract(chainID, contract string) error {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	db, err := ps.collection(CollectionSessionMeta)
	if err != nil {
		return err
	}
	owner := strings.ToLower(chainID + "/" + contract)
	current, err := readMeta(db, metaKeyContract)
	if err != nil {
		return err
	}
	if current == owner {
		return nil
	}
	if current != "" {
		log.Printf("🔁 Wave cache belongs to %s, resetting for %s", current, owner)
		for _, name := range []string{CollectionWaves, CollectionSessionMeta} {
			if err := ps.clearCollection(name); err != nil {
				return err
			}
		}
	}
	return db.Set([]byte(metaKeyContract), []byte(owner), pebble.Sync)
}

func readMeta(db *pebble.DB, key string) (string, error) {
	value, closer, err := db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("读取 %s 失败: %w", key, err)
	}
	defer closer.Close()
	return string(value), nil
}

// clearCollection 清空指定集合，调用方需持有 ps.mu 写锁
func (ps *PebbleService) clearCollection(collectionName string) error {
	if collectionName == "" {
		return fmt.Errorf("集合名称不能为空")
	}
	db, err := ps.collection(collectionName)
	if err != nil {
		return err
	}

	iter, err := db.NewIter(nil)
	if err != nil {
		return fmt.Errorf("创建迭代器失败: %w", err)
	}
	var keys [][]byte
	for iter.First(); iter.Valid(); iter.Next() {
		keys = append(keys, append([]byte(nil), iter.Key()...))
	}
	if err := iter.Error(); err != nil {
		iter.Close()
		return fmt.Errorf("迭代器错误: %w", err)
	}
	iter.Close()

	batch := db.NewBatch()
	defer batch.Close()
	for _, key := range keys {
		if err := batch.Delete(key, nil); err != nil {
			return fmt.Errorf("批量删除失败: %w", err)
		}
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("提交批处理删除失败: %w", err)
	}
	log.Printf("🗑️ Cleared %s (%d records)", collectionName, len(keys))
	return nil
}
