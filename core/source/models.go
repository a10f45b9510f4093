package source

import "essync/core/document"

type classRow struct {
	Name             string `gorm:"primaryKey;size:191"`
	DefaultClusterID int    `gorm:"not null"`
}

func (classRow) TableName() string { return "classes" }

type clusterRow struct {
	ID   int    `gorm:"primaryKey;autoIncrement"`
	Name string `gorm:"uniqueIndex;size:191;not null"`
}

func (clusterRow) TableName() string { return "clusters" }

type recordRow struct {
	ClusterID int    `gorm:"primaryKey;autoIncrement:false"`
	Position  int64  `gorm:"primaryKey;autoIncrement:false"`
	Class     string `gorm:"index;size:191"`
	Version   int    `gorm:"not null;default:1"`
	Body      []byte
}

func (recordRow) TableName() string { return "records" }

type userRow struct {
	Name         string `gorm:"primaryKey;size:191"`
	PasswordHash string `gorm:"not null"`
}

func (userRow) TableName() string { return "users" }

// Schema lists the tables of a source database and the columns the synchronizer reads.
var Schema = map[string][]string{
	"classes":  {"name", "default_cluster_id"},
	"clusters": {"id", "name"},
	"records":  {"cluster_id", "position", "class", "version", "body"},
	"users":    {"name", "password_hash"},
}

func toRecord(row recordRow) (*document.Record, error) {
	rec := document.NewRecord(row.Class)
	rec.SetIdentity(document.RID{Cluster: row.ClusterID, Position: row.Position})
	rec.SetVersion(row.Version)
	if len(row.Body) == 0 {
		return rec, nil
	}
	if err := document.DecodeBody(rec, row.Body); err != nil {
		return nil, &MalformedRecordError{RID: rec.Identity(), Err: err}
	}
	return rec, nil
}
