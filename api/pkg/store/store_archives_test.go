package store

import (
	"time"

	"github.com/bigkevmcd/capomastro/api/pkg/types"
)

func (suite *StoreTestSuite) TestGetDefaultArchive() {
	_, err := suite.db.CreateArchive(suite.ctx, &types.Archive{
		Name:      "secondary",
		Transport: "local",
		Basedir:   "/srv/archive",
		Policy:    "default",
	})
	suite.Require().NoError(err)

	_, err = suite.db.GetDefaultArchive(suite.ctx)
	suite.ErrorIs(err, ErrNotFound)

	archive, err := suite.db.CreateArchive(suite.ctx, &types.Archive{
		Name:      "primary",
		Transport: "local",
		Basedir:   "/srv/archive",
		Policy:    "cdimage",
		Default:   true,
	})
	suite.Require().NoError(err)

	found, err := suite.db.GetDefaultArchive(suite.ctx)
	suite.Require().NoError(err)
	suite.Equal(archive.ID, found.ID)
}

func (suite *StoreTestSuite) TestListArchiveArtifacts_Unarchived() {
	archive, err := suite.db.CreateArchive(suite.ctx, &types.Archive{
		Name:      "primary",
		Transport: "local",
		Basedir:   "/srv/archive",
		Policy:    "default",
		Default:   true,
	})
	suite.Require().NoError(err)

	fetched := time.Now()
	size := int64(21)
	_, err = suite.db.CreateArchiveArtifact(suite.ctx, &types.ArchiveArtifact{
		ArchiveID:    archive.ID,
		ArtifactID:   "art_1",
		BuildID:      "bld_1",
		ArchivedPath: "job/1/testing.txt",
		ArchivedAt:   &fetched,
		ArchivedSize: &size,
	})
	suite.Require().NoError(err)

	pending, err := suite.db.CreateArchiveArtifact(suite.ctx, &types.ArchiveArtifact{
		ArchiveID:    archive.ID,
		ArtifactID:   "art_2",
		BuildID:      "bld_1",
		ArchivedPath: "job/1/testing2.txt",
	})
	suite.Require().NoError(err)

	items, err := suite.db.ListArchiveArtifacts(suite.ctx, &ListArchiveArtifactsQuery{
		ArchiveID:  archive.ID,
		Unarchived: true,
	})
	suite.Require().NoError(err)
	suite.Require().Len(items, 1)
	suite.Equal(pending.ID, items[0].ID)

	all, err := suite.db.ListArchiveArtifacts(suite.ctx, &ListArchiveArtifactsQuery{
		BuildID: "bld_1",
	})
	suite.Require().NoError(err)
	suite.Len(all, 2)
}
