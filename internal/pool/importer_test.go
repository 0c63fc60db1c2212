package pool_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"
	"github.com/vytor/lingorun/internal/db"
	"github.com/vytor/lingorun/internal/models"
	"github.com/vytor/lingorun/internal/pool"
	"github.com/vytor/lingorun/internal/repository"
	"github.com/vytor/lingorun/internal/repository/sqlite"
	"github.com/vytor/lingorun/internal/testutil"
	"github.com/xuri/excelize/v2"
)

type ImporterSuite struct {
	suite.Suite
	db         *db.DB
	paragraphs repository.ParagraphRepository
	importer   *pool.Importer
}

func (s *ImporterSuite) SetupTest() {
	s.db = testutil.NewTestDB(s.T())
	s.paragraphs = sqlite.NewParagraphRepository(s.db.DB)
	s.importer = pool.NewImporter(s.paragraphs)
}

func (s *ImporterSuite) TearDownTest() {
	testutil.MustClose(s.T(), s.db)
}

const poolCSV = `Title,Content,Difficulty,Topic
Ở chợ,Tôi đi chợ. Tôi mua rau.,easy,daily
Công việc,"Anh ấy làm việc ở ngân hàng. Anh ấy bận.",5,work
Broken,,hard,none
Bad level,Một câu.,extreme,none
,,,
Kinh tế,Nền kinh tế đang tăng trưởng.,HARD,economy
`

func (s *ImporterSuite) TestImportCSV() {
	ctx := context.Background()

	res, err := s.importer.ImportCSV(ctx, strings.NewReader(poolCSV), pool.DefaultImportConfig(""))
	s.Require().NoError(err)
	s.Assert().Equal(5, res.Processed)
	s.Assert().Equal(3, res.Created)
	s.Assert().Equal(0, res.Skipped)
	s.Require().Len(res.Errors, 2)
	s.Assert().Contains(res.Errors[0], "Row 4")
	s.Assert().Contains(res.Errors[1], "invalid difficulty")

	medium, err := s.paragraphs.ListSeed(ctx, models.BucketMedium)
	s.Require().NoError(err)
	s.Require().Len(medium, 1)
	s.Assert().Equal("Công việc", medium[0].Title)
	s.Assert().Equal("work", medium[0].Topic)
	s.Assert().Len(medium[0].Sentences(), 2)

	hard, err := s.paragraphs.ListSeed(ctx, models.BucketHard)
	s.Require().NoError(err)
	s.Assert().Len(hard, 1)

	again, err := s.importer.ImportCSV(ctx, strings.NewReader(poolCSV), pool.DefaultImportConfig(""))
	s.Require().NoError(err)
	s.Assert().Equal(0, again.Created)
	s.Assert().Equal(3, again.Skipped)

	n, err := s.paragraphs.CountSeed(ctx)
	s.Require().NoError(err)
	s.Assert().Equal(3, n)
}

func (s *ImporterSuite) TestImportFile_CSVAndExcel() {
	ctx := context.Background()
	dir := s.T().TempDir()

	csvPath := filepath.Join(dir, "pool.csv")
	s.Require().NoError(os.WriteFile(csvPath, []byte(poolCSV), 0o600))
	res, err := s.importer.Import(ctx, pool.DefaultImportConfig(csvPath))
	s.Require().NoError(err)
	s.Assert().Equal(3, res.Created)

	f := excelize.NewFile()
	s.Require().NoError(f.SetSheetRow("Sheet1", "A1", &[]interface{}{"Title", "Content", "Difficulty", "Topic"}))
	s.Require().NoError(f.SetSheetRow("Sheet1", "A2", &[]interface{}{"Ở chợ", "Tôi đi chợ.", "easy", "daily"}))
	s.Require().NoError(f.SetSheetRow("Sheet1", "A3", &[]interface{}{"Thời tiết", "Hôm nay trời mưa. Tôi ở nhà.", 2, "weather"}))
	xlsxPath := filepath.Join(dir, "pool.xlsx")
	s.Require().NoError(f.SaveAs(xlsxPath))
	s.Require().NoError(f.Close())

	res, err = s.importer.Import(ctx, pool.DefaultImportConfig(xlsxPath))
	s.Require().NoError(err)
	s.Assert().Equal(2, res.Processed)
	s.Assert().Equal(1, res.Created)
	s.Assert().Equal(1, res.Skipped)

	easy, err := s.paragraphs.ListSeed(ctx, models.BucketEasy)
	s.Require().NoError(err)
	s.Assert().Len(easy, 2)
}

func (s *ImporterSuite) TestImport_UnsupportedExtension() {
	_, err := s.importer.Import(context.Background(), pool.DefaultImportConfig("pool.json"))
	s.Assert().Error(err)
}

func TestImporterSuite(t *testing.T) {
	suite.Run(t, new(ImporterSuite))
}
