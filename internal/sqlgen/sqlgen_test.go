package sqlgen

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coregx/entities/internal/dialects"
	"github.com/coregx/entities/internal/naming"
	"github.com/coregx/entities/internal/schema"
)

type SampleEntity struct {
	Id          int
	Name        string `db:",key"`
	Description string
}

func (SampleEntity) TableName() string { return "whatever.Sample" }

type point struct{ X, Y float64 }

type ExoticEntity struct {
	Id            int `db:"ExoticId"`
	Name          string
	Value         *float64
	AliasedColumn string     `db:"Aliased"`
	Location      point      `db:"-"`
	DateCreated   time.Time  `db:",noupdate"`
	DateModified  *time.Time `db:",noinsert"`
	Whatevers     []string
}

type CompositeKeyEntity struct {
	Id           int
	SomethingId  int
	Name         string
	Description  string
	DateCreated  time.Time  `db:",noupdate"`
	DateModified *time.Time `db:",noinsert"`
}

func (CompositeKeyEntity) AlternateKey() []string { return []string{"SomethingId", "Name"} }

type CompositeKeyEntity2 struct {
	Id           int
	SomethingId  int    `db:",key"`
	Name         string `db:",key"`
	Description  string
	DateCreated  time.Time  `db:",noupdate"`
	DateModified *time.Time `db:",noinsert"`
}

func (CompositeKeyEntity2) TableName() string { return "CompositeKeyEntity" }

type TenantRecord struct {
	Id       int
	TenantId int `db:",key,noupdate"`
	Name     string
}

func build(t *testing.T, v any, d dialects.Dialect) *Statements {
	t.Helper()
	desc, err := schema.Of(v)
	require.NoError(t, err)
	s, err := Build(desc, d)
	require.NoError(t, err)
	return s
}

func postgres() dialects.Dialect  { return &dialects.PostgresDialect{Naming: naming.SnakeCase} }
func sqlserver() dialects.Dialect { return &dialects.SQLServerDialect{} }

func TestPostgres_SampleEntity(t *testing.T) {
	s := build(t, SampleEntity{}, postgres())

	assert.Equal(t, "SELECT id AS Id, name AS Name, description AS Description FROM whatever.sample WHERE id = @id", s.GetByID)
	assert.Equal(t, "INSERT INTO whatever.sample (name, description) VALUES (@Name, @Description) RETURNING id;", s.Insert)
	assert.Equal(t, "UPDATE whatever.sample SET name=@Name, description=@Description WHERE id=@Id", s.Update)
	assert.Equal(t, "DELETE FROM whatever.sample WHERE id=@Id", s.Delete)
	assert.True(t, s.HasAlternateKey)
	assert.Equal(t, "SELECT id AS Id, name AS Name, description AS Description FROM whatever.sample WHERE name=@Name", s.GetByAlternateKey)
	assert.Equal(t, "whatever.sample", s.TableName)
}

func TestPostgres_ExoticEntity(t *testing.T) {
	s := build(t, ExoticEntity{}, postgres())

	assert.Equal(t, "SELECT exotic_id AS Id, name AS Name, value AS Value, aliased AS AliasedColumn, date_created AS DateCreated, date_modified AS DateModified FROM public.exotic_entity WHERE exotic_id = @id", s.GetByID)
	assert.Equal(t, "INSERT INTO public.exotic_entity (name, value, aliased, date_created) VALUES (@Name, @Value, @AliasedColumn, @DateCreated) RETURNING exotic_id;", s.Insert)
	assert.Equal(t, "UPDATE public.exotic_entity SET name=@Name, value=@Value, aliased=@AliasedColumn, date_modified=@DateModified WHERE exotic_id=@Id", s.Update)
	assert.Equal(t, "DELETE FROM public.exotic_entity WHERE exotic_id=@Id", s.Delete)
	assert.False(t, s.HasAlternateKey)
	assert.Empty(t, s.GetByAlternateKey)
}

func TestPostgres_CompositeEntity(t *testing.T) {
	s := build(t, CompositeKeyEntity{}, postgres())

	assert.Equal(t, "INSERT INTO public.composite_key_entity (something_id, name, description, date_created) VALUES (@SomethingId, @Name, @Description, @DateCreated) RETURNING id;", s.Insert)
	assert.Equal(t, "UPDATE public.composite_key_entity SET something_id=@SomethingId, name=@Name, description=@Description, date_modified=@DateModified WHERE id=@Id", s.Update)
	assert.Equal(t, "DELETE FROM public.composite_key_entity WHERE id=@Id", s.Delete)
	assert.True(t, s.HasAlternateKey)
	assert.Equal(t, "SELECT id AS Id, something_id AS SomethingId, name AS Name, description AS Description, date_created AS DateCreated, date_modified AS DateModified FROM public.composite_key_entity WHERE something_id=@SomethingId AND name=@Name", s.GetByAlternateKey)
}

func TestPostgres_ImmutableKeyInWhere(t *testing.T) {
	s := build(t, TenantRecord{}, postgres())

	assert.Equal(t, "INSERT INTO public.tenant_record (tenant_id, name) VALUES (@TenantId, @Name) RETURNING id;", s.Insert)
	assert.Equal(t, "UPDATE public.tenant_record SET name=@Name WHERE id=@Id AND tenant_id=@TenantId", s.Update)
	assert.Equal(t, "DELETE FROM public.tenant_record WHERE id=@Id AND tenant_id=@TenantId", s.Delete)
	assert.False(t, s.HasAlternateKey)
	assert.Empty(t, s.GetByAlternateKey)

	set := strings.SplitN(strings.TrimPrefix(s.Update, "UPDATE public.tenant_record SET "), " WHERE ", 2)[0]
	assert.NotContains(t, set, "tenant_id")
}

func TestPostgres_ExactNaming(t *testing.T) {
	s := build(t, SampleEntity{}, &dialects.PostgresDialect{Naming: naming.Exact})

	assert.Equal(t, `SELECT "Id" AS Id, "Name" AS Name, "Description" AS Description FROM "whatever"."Sample" WHERE "Id" = @id`, s.GetByID)
	assert.Equal(t, `DELETE FROM "whatever"."Sample" WHERE "Id"=@Id`, s.Delete)
}

func TestSQLServer_SampleEntity(t *testing.T) {
	s := build(t, SampleEntity{}, sqlserver())

	assert.Equal(t, "SELECT * FROM [whatever].[Sample] WHERE [Id]=@Id", s.GetByID)
	assert.Equal(t, "INSERT INTO [whatever].[Sample] ([Name], [Description]) VALUES (@Name, @Description); SELECT SCOPE_IDENTITY()", s.Insert)
	assert.Equal(t, "UPDATE [whatever].[Sample] SET [Name]=@Name, [Description]=@Description WHERE [Id]=@Id", s.Update)
	assert.Equal(t, "DELETE [whatever].[Sample] WHERE [Id]=@Id", s.Delete)
	assert.True(t, s.HasAlternateKey)
	assert.Equal(t, "SELECT * FROM [whatever].[Sample] WHERE [Name]=@Name", s.GetByAlternateKey)
}

func TestSQLServer_ExoticEntity(t *testing.T) {
	s := build(t, ExoticEntity{}, sqlserver())

	assert.Equal(t, "SELECT * FROM [dbo].[ExoticEntity] WHERE [ExoticId]=@Id", s.GetByID)
	assert.Equal(t, "INSERT INTO [dbo].[ExoticEntity] ([Name], [Value], [Aliased], [DateCreated]) VALUES (@Name, @Value, @AliasedColumn, @DateCreated); SELECT SCOPE_IDENTITY()", s.Insert)
	assert.Equal(t, "UPDATE [dbo].[ExoticEntity] SET [Name]=@Name, [Value]=@Value, [Aliased]=@AliasedColumn, [DateModified]=@DateModified WHERE [ExoticId]=@Id", s.Update)
	assert.Equal(t, "DELETE [dbo].[ExoticEntity] WHERE [ExoticId]=@Id", s.Delete)
	assert.False(t, s.HasAlternateKey)
	assert.Empty(t, s.GetByAlternateKey)
}

func TestSQLServer_CompositeEntity(t *testing.T) {
	for _, v := range []any{CompositeKeyEntity{}, CompositeKeyEntity2{}} {
		s := build(t, v, sqlserver())

		assert.Equal(t, "INSERT INTO [dbo].[CompositeKeyEntity] ([SomethingId], [Name], [Description], [DateCreated]) VALUES (@SomethingId, @Name, @Description, @DateCreated); SELECT SCOPE_IDENTITY()", s.Insert)
		assert.Equal(t, "UPDATE [dbo].[CompositeKeyEntity] SET [SomethingId]=@SomethingId, [Name]=@Name, [Description]=@Description, [DateModified]=@DateModified WHERE [Id]=@Id", s.Update)
		assert.Equal(t, "DELETE [dbo].[CompositeKeyEntity] WHERE [Id]=@Id", s.Delete)
		assert.True(t, s.HasAlternateKey)
		assert.Equal(t, "SELECT * FROM [dbo].[CompositeKeyEntity] WHERE [SomethingId]=@SomethingId AND [Name]=@Name", s.GetByAlternateKey)
	}
}

func TestMySQL_SampleEntity(t *testing.T) {
	s := build(t, SampleEntity{}, &dialects.MySQLDialect{Naming: naming.SnakeCase})

	assert.Equal(t, "SELECT `id` AS Id, `name` AS Name, `description` AS Description FROM `whatever`.`sample` WHERE `id` = @id", s.GetByID)
	assert.Equal(t, "INSERT INTO `whatever`.`sample` (`name`, `description`) VALUES (@Name, @Description)", s.Insert)

	c := build(t, CompositeKeyEntity{}, &dialects.MySQLDialect{Naming: naming.SnakeCase})
	assert.Equal(t, "DELETE FROM `composite_key_entity` WHERE `id`=@Id", c.Delete)
}

func TestUpdateColumns(t *testing.T) {
	s := build(t, ExoticEntity{}, postgres())

	sql, err := s.UpdateColumns("datemodified", "NAME")
	require.NoError(t, err)
	assert.Equal(t, "UPDATE public.exotic_entity SET name=@Name, date_modified=@DateModified WHERE exotic_id=@Id", sql)

	// Not-updated and primary key columns never enter the set list.
	_, err = s.UpdateColumns("DateCreated", "Id")
	assert.True(t, errors.Is(err, ErrMapping))

	_, err = s.UpdateColumns()
	assert.ErrorIs(t, err, ErrMapping)
}

func TestBuild_Deterministic(t *testing.T) {
	desc, err := schema.Of(CompositeKeyEntity{})
	require.NoError(t, err)

	a, err := Build(desc, postgres())
	require.NoError(t, err)
	b, err := Build(desc, postgres())
	require.NoError(t, err)

	assert.Equal(t, a.GetByID, b.GetByID)
	assert.Equal(t, a.GetByAlternateKey, b.GetByAlternateKey)
	assert.Equal(t, a.Insert, b.Insert)
	assert.Equal(t, a.Update, b.Update)
	assert.Equal(t, a.Delete, b.Delete)
}

func TestBuild_NotInsertedStillSelected(t *testing.T) {
	s := build(t, ExoticEntity{}, postgres())
	assert.Contains(t, s.GetByID, "date_modified AS DateModified")
	assert.NotContains(t, s.Insert, "date_modified")
	assert.Contains(t, s.GetByID, "date_created AS DateCreated")
	assert.NotContains(t, s.Update, "date_created")
}

func TestBuild_MappingErrors(t *testing.T) {
	tests := []struct {
		name      string
		desc      *schema.Descriptor
		statement string
	}{
		{
			name:      "no primary key",
			desc:      schema.NewBuilder("Log").Field("Message").Build(),
			statement: StmtGetByID,
		},
		{
			name:      "no insert columns",
			desc:      schema.NewBuilder("Counter").Field("Id").Field("Hits", schema.NotInserted()).Build(),
			statement: StmtInsert,
		},
		{
			name:      "no update columns",
			desc:      schema.NewBuilder("Event").Field("Id").Field("At", schema.NotUpdated()).Build(),
			statement: StmtUpdate,
		},
		{
			name:      "only the primary key",
			desc:      schema.NewBuilder("Tag").Field("Id").Build(),
			statement: StmtInsert,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.desc, postgres())
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMapping)

			var me *MappingError
			require.True(t, errors.As(err, &me))
			assert.Equal(t, tt.desc.Name, me.Type)
			assert.Equal(t, tt.statement, me.Statement)
			assert.Contains(t, err.Error(), tt.desc.Name)
		})
	}
}

func TestBuild_ExplicitDescriptor(t *testing.T) {
	desc := schema.NewBuilder("SampleEntity").
		Table("whatever", "Sample").
		Field("Id").
		Field("Name", schema.Key()).
		Field("Description").
		Build()

	s, err := Build(desc, postgres())
	require.NoError(t, err)
	reflected := build(t, SampleEntity{}, postgres())

	assert.Equal(t, reflected.GetByID, s.GetByID)
	assert.Equal(t, reflected.Insert, s.Insert)
	assert.Equal(t, reflected.Update, s.Update)
	assert.Equal(t, reflected.GetByAlternateKey, s.GetByAlternateKey)
	assert.Equal(t, "Id", s.Primary().ParameterName)
}
